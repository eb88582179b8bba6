// Package track provides the Track domain entity.
package track

import (
	"net/url"
	"strings"
	"time"
)

// LocalURIPrefix is the URI scheme Spotify assigns to local files.
// Local files cannot be added to or removed from a playlist through the
// API; they can only be reordered.
const LocalURIPrefix = "spotify:local"

// Track represents a single playlist entry as returned by the Spotify API.
type Track struct {
	ID          string        `json:"id"`           // Spotify Track ID (URI for local files)
	URI         string        `json:"uri"`          // Spotify URI
	Name        string        `json:"name"`         // Track name
	Artist      string        `json:"artist"`       // Artist names, joined with ", "
	Album       string        `json:"album"`        // Album name
	AlbumType   string        `json:"album_type"`   // "album", "single", "compilation" or "unknown"
	ReleaseDate string        `json:"release_date"` // ISO-like date, possibly year or year-month only
	Duration    time.Duration `json:"duration"`     // Track duration
}

// IsLocal reports whether the track is a local file.
func (t *Track) IsLocal() bool {
	return IsLocalURI(t.URI)
}

// FirstArtist returns the main artist (text before the first comma).
func (t *Track) FirstArtist() string {
	name, _, _ := strings.Cut(t.Artist, ",")
	return strings.TrimSpace(name)
}

// IsLocalURI reports whether the URI uses the local-file scheme.
func IsLocalURI(uri string) bool {
	return strings.HasPrefix(uri, LocalURIPrefix)
}

// ParseLocalURI extracts artist, album and title from a synthetic local-file
// URI of the form spotify:local:ARTIST:ALBUM:TITLE:SECONDS. The segments are
// percent-encoded with '+' for spaces. ok is false when the URI does not
// carry enough segments.
func ParseLocalURI(uri string) (artist, album, title string, ok bool) {
	parts := strings.Split(uri, ":")
	if !IsLocalURI(uri) || len(parts) < 6 {
		return "", "", "", false
	}
	return decodeLocalField(parts[2]), decodeLocalField(parts[3]), decodeLocalField(parts[4]), true
}

// decodeLocalField decodes one percent-plus encoded URI segment.
func decodeLocalField(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		// Keep the raw value, only turning '+' back into spaces.
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}

// NormalizeReleaseDate pads a partial release date to a full YYYY-MM-DD form
// so that string comparison orders dates correctly. "1999" becomes
// "1999-01-01" and "1999-03" becomes "1999-03-01"; full dates are returned
// unchanged.
func NormalizeReleaseDate(date string) string {
	if date == "" {
		return ""
	}
	switch parts := strings.Split(date, "-"); len(parts) {
	case 1:
		return parts[0] + "-01-01"
	case 2:
		return parts[0] + "-" + parts[1] + "-01"
	default:
		return date
	}
}
