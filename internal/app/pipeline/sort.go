package pipeline

import (
	"sort"
	"strings"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/track"
)

// albumTypePriority orders album types for the Album Type criterion.
// Unknown types sort after all known ones.
func albumTypePriority(albumType string) int {
	switch strings.ToLower(albumType) {
	case "album":
		return 0
	case "single":
		return 1
	case "compilation":
		return 2
	default:
		return 3
	}
}

// Sort stably sorts tracks by the given rules applied as a lexicographic
// multi-key comparator. String keys compare case-insensitively, release
// dates in their normalized form. Each rule's result is negated when its
// descending flag is set; final ties preserve the prior relative order.
func Sort(tracks []track.Track, rules []dynamic.SortRule) []track.Track {
	if len(rules) == 0 {
		return tracks
	}

	sorted := make([]track.Track, len(tracks))
	copy(sorted, tracks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return compareTracks(&sorted[i], &sorted[j], rules) < 0
	})

	return sorted
}

func compareTracks(a, b *track.Track, rules []dynamic.SortRule) int {
	for _, rule := range rules {
		var result int

		switch rule.Criterion {
		case dynamic.ByArtist:
			result = strings.Compare(strings.ToLower(a.Artist), strings.ToLower(b.Artist))
		case dynamic.ByAlbum:
			result = strings.Compare(strings.ToLower(a.Album), strings.ToLower(b.Album))
		case dynamic.ByTrackName:
			result = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case dynamic.ByReleaseDate:
			result = strings.Compare(
				track.NormalizeReleaseDate(a.ReleaseDate),
				track.NormalizeReleaseDate(b.ReleaseDate),
			)
		case dynamic.ByDuration:
			switch {
			case a.Duration < b.Duration:
				result = -1
			case a.Duration > b.Duration:
				result = 1
			}
		case dynamic.ByAlbumType:
			pa, pb := albumTypePriority(a.AlbumType), albumTypePriority(b.AlbumType)
			switch {
			case pa < pb:
				result = -1
			case pa > pb:
				result = 1
			}
		default:
			continue
		}

		if result != 0 {
			if rule.Descending {
				return -result
			}
			return result
		}
	}

	return 0
}
