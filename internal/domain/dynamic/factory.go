package dynamic

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// SourceEntry is the raw tagged form of a source as written in
// configuration files: a kind plus kind-specific settings.
type SourceEntry struct {
	Kind     string         `yaml:"kind" json:"kind"`
	Settings map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// playlistSourceSettings holds the settings of a playlist source.
type playlistSourceSettings struct {
	PlaylistID string `mapstructure:"playlist_id"`
}

// NewSource builds a typed Source from its raw configuration entry.
// Unknown kinds are a construction-time error.
func NewSource(entry SourceEntry) (Source, error) {
	switch SourceKind(entry.Kind) {
	case SourcePlaylist:
		var settings playlistSourceSettings
		if err := mapstructure.Decode(entry.Settings, &settings); err != nil {
			return Source{}, errors.Wrap(err, "failed to decode playlist source settings")
		}
		src := Source{Kind: SourcePlaylist, PlaylistID: settings.PlaylistID}
		return src, src.Validate()

	case SourceLikedSongs:
		return Source{Kind: SourceLikedSongs}, nil

	default:
		return Source{}, errors.Newf("unsupported source kind: %q", entry.Kind)
	}
}
