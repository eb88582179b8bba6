// Package pipeline provides pure transforms over in-memory track lists:
// filtering, sampling, deduplication and multi-key sorting.
package pipeline

import (
	"strings"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/track"
)

// Filter drops tracks per the configured rules: tracks whose URI is in the
// liked set (when exclude-liked is on), and tracks matched by any blacklist
// keyword. Keywords match case-insensitively as substrings of title, artist
// or album.
func Filter(tracks []track.Track, filters dynamic.Filters, likedURIs map[string]struct{}) []track.Track {
	result := make([]track.Track, 0, len(tracks))

	for _, t := range tracks {
		if filters.ExcludeLiked && likedURIs != nil {
			if _, ok := likedURIs[t.URI]; ok {
				continue
			}
		}

		if matchesBlacklist(&t, filters.KeywordBlacklist) {
			continue
		}

		result = append(result, t)
	}

	return result
}

func matchesBlacklist(t *track.Track, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}

	name := strings.ToLower(t.Name)
	artist := strings.ToLower(t.Artist)
	album := strings.ToLower(t.Album)

	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) || strings.Contains(artist, kw) || strings.Contains(album, kw) {
			return true
		}
	}
	return false
}
