package pipeline

import (
	"math/rand"

	"dynaplay/internal/domain/track"
)

// Sample uniformly samples without replacement down to max tracks. Order is
// not preserved; this is sampling, not truncation. A nil cap or one at or
// above the list length returns the input unchanged.
func Sample(tracks []track.Track, max *int) []track.Track {
	if max == nil || *max >= len(tracks) {
		return tracks
	}

	sampled := make([]track.Track, 0, *max)
	for _, idx := range rand.Perm(len(tracks))[:*max] {
		sampled = append(sampled, tracks[idx])
	}
	return sampled
}
