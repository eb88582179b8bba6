// Package reconcile transforms a remote playlist's current track list into
// a desired ordered list using the three mutation primitives the API
// offers: append, positional remove, and single-range move.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/track"
)

// maxWarningEntries caps how many skipped local files the warning lists.
const maxWarningEntries = 100

// Remote is the subset of the remote track source the engine mutates
// through. Batched calls chunk internally to the API's 100-item limit.
type Remote interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	RemoveTracksAt(ctx context.Context, playlistID string, removals []playlist.Removal) error
	MoveRange(ctx context.Context, playlistID string, rangeStart, insertBefore, length int) error
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error
}

// ProgressFunc reports reconciliation progress as (processed, total).
type ProgressFunc func(processed, total int)

// Engine reconciles a target playlist against a desired URI sequence.
type Engine struct {
	remote Remote
}

// New creates a reconciliation engine.
func New(remote Remote) *Engine {
	return &Engine{remote: remote}
}

// Sync mutates the playlist to reflect the desired sequence as closely as
// the API allows. The returned warning is non-empty when local files could
// not be materialized (they cannot be added through the API) or when every
// input URI was unsupported.
func (e *Engine) Sync(
	ctx context.Context,
	playlistID string,
	desired []string,
	details map[string]track.Track,
	progress ProgressFunc,
) (string, error) {
	target := sanitizeURIs(desired)

	current, err := e.remote.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return "", err
	}
	currentURIs := make([]string, len(current))
	for i, t := range current {
		currentURIs[i] = t.URI
	}

	// Playlists without local entries take the cheap whole-sequence
	// replace path; a local file on either side forces the
	// add/delete/reorder walk because a bulk replace would drop the ones
	// already in the playlist permanently.
	if !containsLocal(target) && !containsLocal(currentURIs) {
		return e.replaceAll(ctx, playlistID, target)
	}
	return e.reorder(ctx, playlistID, target, currentURIs, details, progress)
}

func containsLocal(uris []string) bool {
	for _, uri := range uris {
		if track.IsLocalURI(uri) {
			return true
		}
	}
	return false
}

// replaceAll issues a single bulk replace (the remote source appends any
// remainder beyond the first 100 itself).
func (e *Engine) replaceAll(ctx context.Context, playlistID string, target []string) (string, error) {
	if len(target) == 0 {
		return "", e.remote.ReplaceTracks(ctx, playlistID, nil)
	}

	supported := make([]string, 0, len(target))
	for _, uri := range target {
		uri = strings.TrimSpace(uri)
		if isSupportedURI(uri) {
			supported = append(supported, uri)
		}
	}

	// Distinguish "nothing to do" from "everything was invalid": a
	// non-empty input that filters down to nothing becomes a message, not
	// an empty-body call.
	if len(supported) == 0 {
		zlog.Warn().Msgf("All %d tracks were filtered out as invalid or unsupported URIs", len(target))
		return "No valid Spotify tracks found to update (all were local or malformed).", nil
	}

	if err := e.remote.ReplaceTracks(ctx, playlistID, supported); err != nil {
		return "", err
	}
	return "", nil
}

// reorder runs the three-phase add/delete/move reconciliation, honoring the
// restriction that local files can only be moved, never added or removed.
func (e *Engine) reorder(
	ctx context.Context,
	playlistID string,
	target []string,
	currentURIs []string,
	details map[string]track.Track,
	progress ProgressFunc,
) (string, error) {
	if progress != nil {
		progress(0, len(target))
	}

	zlog.Info().Msgf("Reconciling playlist %s: %d current, %d target", playlistID, len(currentURIs), len(target))

	warning := buildMissingLocalWarning(target, currentURIs, details)

	// Add phase: desired non-local URIs absent from the playlist, appended
	// in desired order. The mirror is updated in place to avoid a refetch.
	currentSet := make(map[string]struct{}, len(currentURIs))
	for _, uri := range currentURIs {
		currentSet[uri] = struct{}{}
	}
	var missing []string
	for _, uri := range target {
		if track.IsLocalURI(uri) {
			continue
		}
		if _, ok := currentSet[uri]; !ok {
			missing = append(missing, uri)
		}
	}
	if len(missing) > 0 {
		zlog.Info().Msgf("Add phase: appending %d tracks", len(missing))
		if err := e.remote.AddTracks(ctx, playlistID, missing); err != nil {
			return "", err
		}
		currentURIs = append(currentURIs, missing...)
	}

	// Delete phase: walk the current list once keeping each URI up to its
	// desired occurrence count; surplus standard entries are removed by
	// explicit position, surplus locals stay put.
	targetCounts := make(map[string]int, len(target))
	for _, uri := range target {
		targetCounts[uri]++
	}

	var removals []playlist.Removal
	kept := make([]bool, len(currentURIs))
	keptCounts := make(map[string]int)
	for i, uri := range currentURIs {
		if keptCounts[uri] < targetCounts[uri] {
			keptCounts[uri]++
			kept[i] = true
			continue
		}
		if track.IsLocalURI(uri) {
			kept[i] = true
			continue
		}
		removals = append(removals, playlist.Removal{URI: uri, Positions: []int{i}})
	}
	if len(removals) > 0 {
		zlog.Info().Msgf("Delete phase: removing %d surplus tracks", len(removals))
		if err := e.remote.RemoveTracksAt(ctx, playlistID, removals); err != nil {
			return "", err
		}
		trimmed := currentURIs[:0]
		for i, uri := range currentURIs {
			if kept[i] {
				trimmed = append(trimmed, uri)
			}
		}
		currentURIs = trimmed
	}

	// Reorder phase: selection-sort style single-element moves. Duplicate
	// URIs are matched positionally by consuming one pool instance per
	// desired occurrence.
	pool := make(map[string]int, len(currentURIs))
	for _, uri := range currentURIs {
		pool[uri]++
	}
	var actualTarget []string
	for _, uri := range target {
		if pool[uri] > 0 {
			actualTarget = append(actualTarget, uri)
			pool[uri]--
		}
	}

	total := len(actualTarget)
	zlog.Info().Msgf("Reorder phase: placing %d items", total)

	for i := 0; i < total; i++ {
		if progress != nil && (i%20 == 0 || i == total-1) {
			progress(i, total)
		}
		if i >= len(currentURIs) {
			break
		}

		wanted := actualTarget[i]
		if currentURIs[i] == wanted {
			continue
		}

		found := -1
		for j := i + 1; j < len(currentURIs); j++ {
			if currentURIs[j] == wanted {
				found = j
				break
			}
		}
		if found == -1 {
			// Should not happen after add/delete; skip without mutating.
			continue
		}

		if err := e.remote.MoveRange(ctx, playlistID, found, i, 1); err != nil {
			// A rejected move is systemic for the remaining moves but not
			// fatal to the run.
			zlog.Error().Err(err).Msgf("Move rejected at index %d, aborting remaining moves", i)
			break
		}
		uri := currentURIs[found]
		currentURIs = append(currentURIs[:found], currentURIs[found+1:]...)
		currentURIs = append(currentURIs[:i], append([]string{uri}, currentURIs[i:]...)...)
	}

	if progress != nil {
		progress(len(target), len(target))
	}

	return warning, nil
}

// buildMissingLocalWarning lists desired local files absent from the
// playlist; the API can never materialize them.
func buildMissingLocalWarning(target, currentURIs []string, details map[string]track.Track) string {
	currentLocal := make(map[string]struct{})
	for _, uri := range currentURIs {
		if track.IsLocalURI(uri) {
			currentLocal[uri] = struct{}{}
		}
	}

	var missing []string
	for _, uri := range target {
		if !track.IsLocalURI(uri) {
			continue
		}
		if _, ok := currentLocal[uri]; !ok {
			missing = append(missing, uri)
		}
	}
	if len(missing) == 0 {
		return ""
	}

	zlog.Warn().Msgf("%d local files cannot be added through the API", len(missing))

	lines := make([]string, 0, maxWarningEntries)
	for _, uri := range missing {
		if len(lines) == maxWarningEntries {
			break
		}
		lines = append(lines, describeLocalTrack(uri, details))
	}

	suffix := ""
	if len(missing) > maxWarningEntries {
		suffix = fmt.Sprintf("\n... (%d more)", len(missing)-maxWarningEntries)
	}

	return fmt.Sprintf(
		"Skipped %d local files (API restriction):\n%s%s\n\nPlease manually copy these files to the target device/playlist.",
		len(missing), strings.Join(lines, "\n"), suffix,
	)
}

func describeLocalTrack(uri string, details map[string]track.Track) string {
	if info, ok := details[uri]; ok {
		date := info.ReleaseDate
		if date == "" {
			date = "No Date"
		}
		return fmt.Sprintf("- %s - %s • %s (%s)", info.Artist, info.Name, info.Album, date)
	}
	if artist, album, title, ok := track.ParseLocalURI(uri); ok {
		return fmt.Sprintf("- %s - %s • %s", artist, title, album)
	}
	return "- " + uri
}

// sanitizeURIs drops empty and scheme-less entries.
func sanitizeURIs(uris []string) []string {
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if uri != "" && strings.Contains(uri, ":") {
			out = append(out, uri)
		}
	}
	return out
}

// isSupportedURI reports whether the URI scheme can be written through the
// playlist mutation API.
func isSupportedURI(uri string) bool {
	return strings.HasPrefix(uri, "spotify:track:") || strings.HasPrefix(uri, "spotify:episode:")
}
