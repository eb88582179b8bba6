// Package playlist provides playlist-level domain types.
package playlist

// Summary describes one playlist owned or followed by the user.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	Editable   bool   `json:"editable"` // owned by the user or collaborative
	TrackCount int    `json:"track_count"`
	ImageURL   string `json:"image_url,omitempty"`
}

// Removal identifies occurrences of a URI to remove from a playlist by
// explicit position.
type Removal struct {
	URI       string
	Positions []int
}
