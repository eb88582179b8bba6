// Package dynamic provides the dynamic playlist configuration entities.
package dynamic

import (
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// SourceKind identifies the kind of track source.
type SourceKind string

const (
	SourcePlaylist   SourceKind = "playlist"
	SourceLikedSongs SourceKind = "likedSongs"
)

// Source identifies one collection of tracks feeding a dynamic playlist.
type Source struct {
	Kind       SourceKind `json:"kind" yaml:"kind"`
	PlaylistID string     `json:"playlist_id,omitempty" yaml:"playlist_id,omitempty"`
}

// Validate checks the source variant.
func (s Source) Validate() error {
	switch s.Kind {
	case SourcePlaylist:
		if s.PlaylistID == "" {
			return errors.New("playlist source requires a playlist id")
		}
	case SourceLikedSongs:
	default:
		return errors.Newf("unsupported source kind: %q", s.Kind)
	}
	return nil
}

// Filters describes which collected tracks are dropped before processing.
type Filters struct {
	ExcludeLiked     bool     `json:"exclude_liked" yaml:"exclude_liked"`
	KeywordBlacklist []string `json:"keyword_blacklist" yaml:"keyword_blacklist"`
}

// SortCriterion is a closed enumeration of sortable track attributes.
type SortCriterion string

const (
	ByArtist      SortCriterion = "Artist"
	ByAlbum       SortCriterion = "Album"
	ByTrackName   SortCriterion = "Track Name"
	ByReleaseDate SortCriterion = "Release Date"
	ByDuration    SortCriterion = "Duration"
	ByAlbumType   SortCriterion = "Album Type"
)

// Validate rejects unknown criteria at construction time rather than
// silently ignoring them during a run.
func (c SortCriterion) Validate() error {
	switch c {
	case ByArtist, ByAlbum, ByTrackName, ByReleaseDate, ByDuration, ByAlbumType:
		return nil
	default:
		return errors.Newf("unsupported sort criterion: %q", c)
	}
}

// SortRule is one key of the lexicographic multi-key comparator.
type SortRule struct {
	Criterion  SortCriterion `json:"criterion" yaml:"criterion"`
	Descending bool          `json:"descending" yaml:"descending"`
}

// DedupePreference selects which duplicate survives semantic deduplication.
type DedupePreference string

const (
	KeepOldestRelease DedupePreference = "Oldest by Release"
	KeepNewestRelease DedupePreference = "Newest by Release"
	KeepFirstAdded    DedupePreference = "Oldest Added"
	KeepLastAdded     DedupePreference = "Newest Added"
)

// Validate rejects unknown preferences at construction time.
func (p DedupePreference) Validate() error {
	switch p {
	case KeepOldestRelease, KeepNewestRelease, KeepFirstAdded, KeepLastAdded:
		return nil
	default:
		return errors.Newf("unsupported dedupe preference: %q", p)
	}
}

// Processing holds the optional post-processing steps of a run.
type Processing struct {
	ApplySort   bool             `json:"apply_sort" yaml:"apply_sort"`
	SortRules   []SortRule       `json:"sort_rules" yaml:"sort_rules"`
	ApplyDedupe bool             `json:"apply_dedupe" yaml:"apply_dedupe"`
	Preference  DedupePreference `json:"dedupe_preference" yaml:"dedupe_preference"`
}

// UpdateMode controls how source tracks combine with the target playlist.
type UpdateMode string

const (
	ModeReplace UpdateMode = "replace"
	ModeMerge   UpdateMode = "merge"
	ModeAppend  UpdateMode = "append"
)

// Config is a declarative specification of a dynamic playlist.
//
// A non-trivial run is expected to have at least one source or the
// include-liked-songs flag set; this is not enforced, an empty
// configuration simply produces an empty desired track list.
type Config struct {
	ID                 string     `json:"id" yaml:"id"`
	Name               string     `json:"name" yaml:"name" validate:"required"`
	TargetPlaylistID   string     `json:"target_playlist_id" yaml:"target_playlist_id" validate:"required"`
	TargetPlaylistName string     `json:"target_playlist_name" yaml:"target_playlist_name"`
	Sources            []Source   `json:"sources" yaml:"sources"`
	Filters            Filters    `json:"filters" yaml:"filters"`
	UpdateMode         UpdateMode `json:"update_mode" yaml:"update_mode" default:"replace"`
	SamplePerSource    *int       `json:"sample_per_source,omitempty" yaml:"sample_per_source,omitempty"`
	IncludeLikedSongs  bool       `json:"include_liked_songs" yaml:"include_liked_songs"`
	Processing         Processing `json:"processing" yaml:"processing"`
	Enabled            bool       `json:"enabled" yaml:"enabled" default:"true"`
}

// Validate checks the configuration, including all closed enumerations.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	switch c.UpdateMode {
	case ModeReplace, ModeMerge, ModeAppend:
	default:
		return errors.Newf("unsupported update mode: %q", c.UpdateMode)
	}

	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	if c.Processing.ApplySort {
		for _, r := range c.Processing.SortRules {
			if err := r.Criterion.Validate(); err != nil {
				return err
			}
		}
	}
	if c.Processing.ApplyDedupe {
		if err := c.Processing.Preference.Validate(); err != nil {
			return err
		}
	}

	if c.SamplePerSource != nil && *c.SamplePerSource < 0 {
		return errors.Newf("sample_per_source must not be negative: %d", *c.SamplePerSource)
	}

	return nil
}
