package pipeline

import (
	"sort"
	"strings"
	"unicode"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/track"
)

// DedupeByURI keeps the first occurrence of each URI, in list order.
func DedupeByURI(tracks []track.Track) []track.Track {
	seen := make(map[string]struct{}, len(tracks))
	result := make([]track.Track, 0, len(tracks))

	for _, t := range tracks {
		if _, ok := seen[t.URI]; ok {
			continue
		}
		seen[t.URI] = struct{}{}
		result = append(result, t)
	}

	return result
}

// DuplicateKey builds the normalized key used for semantic duplicate
// detection: the lowercased title stripped of everything but letters,
// digits and spaces, joined with the lowercased main artist. Two releases
// of the same song that differ only in punctuation, casing or featured
// artists collapse to the same key.
func DuplicateKey(name, artist string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	main, _, _ := strings.Cut(artist, ",")
	return b.String() + "|" + strings.ToLower(strings.TrimSpace(main))
}

// indexedTrack pairs a track with its position before deduplication.
type indexedTrack struct {
	index int
	track track.Track
}

// DedupeSemantic collapses each group of semantically duplicate tracks to a
// single survivor chosen per the preference: oldest/newest by normalized
// release date, or first/last occurrence. Output order is the original
// relative order of all surviving entries.
func DedupeSemantic(tracks []track.Track, pref dynamic.DedupePreference) []track.Track {
	groups := make(map[string][]indexedTrack)
	order := make([]string, 0, len(tracks))

	for idx, t := range tracks {
		key := DuplicateKey(t.Name, t.Artist)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], indexedTrack{index: idx, track: t})
	}

	kept := make([]indexedTrack, 0, len(groups))
	for _, key := range order {
		group := groups[key]
		if len(group) > 1 {
			sortGroup(group, pref)
		}
		kept = append(kept, group[0])
	}

	// Restore the pre-dedupe relative order across all survivors.
	sort.Slice(kept, func(i, j int) bool { return kept[i].index < kept[j].index })

	result := make([]track.Track, len(kept))
	for i, it := range kept {
		result[i] = it.track
	}
	return result
}

func sortGroup(group []indexedTrack, pref dynamic.DedupePreference) {
	switch pref {
	case dynamic.KeepOldestRelease:
		sort.SliceStable(group, func(i, j int) bool {
			return track.NormalizeReleaseDate(group[i].track.ReleaseDate) <
				track.NormalizeReleaseDate(group[j].track.ReleaseDate)
		})
	case dynamic.KeepNewestRelease:
		sort.SliceStable(group, func(i, j int) bool {
			return track.NormalizeReleaseDate(group[i].track.ReleaseDate) >
				track.NormalizeReleaseDate(group[j].track.ReleaseDate)
		})
	case dynamic.KeepFirstAdded:
		sort.SliceStable(group, func(i, j int) bool { return group[i].index < group[j].index })
	case dynamic.KeepLastAdded:
		sort.SliceStable(group, func(i, j int) bool { return group[i].index > group[j].index })
	}
}
