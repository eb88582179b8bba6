package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/track"
)

// GetPlaylistCache fetches the cached tracks of a playlist along with the
// snapshot ID they were fetched under.
func (s *Store) GetPlaylistCache(ctx context.Context, playlistID string) (string, []track.Track, bool, error) {
	var (
		snapshot string
		payload  string
	)
	err := s.db.QueryRowContext(
		ctx,
		"SELECT snapshot_id, tracks_json FROM playlist_cache WHERE playlist_id = ?",
		playlistID,
	).Scan(&snapshot, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, errors.Wrap(err, "failed to query playlist cache")
	}

	var tracks []track.Track
	if err := json.Unmarshal([]byte(payload), &tracks); err != nil {
		return "", nil, false, errors.Wrap(err, "failed to unmarshal cached tracks")
	}
	return snapshot, tracks, true, nil
}

// SavePlaylistCache stores a playlist's tracks keyed by snapshot ID,
// replacing any previous entry.
func (s *Store) SavePlaylistCache(ctx context.Context, playlistID, snapshot string, tracks []track.Track) error {
	payload, err := json.Marshal(tracks)
	if err != nil {
		return errors.Wrap(err, "failed to marshal tracks")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO playlist_cache (playlist_id, snapshot_id, tracks_json, cached_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (playlist_id) DO UPDATE SET
             snapshot_id = excluded.snapshot_id,
             tracks_json = excluded.tracks_json,
             cached_at = excluded.cached_at`,
		playlistID, snapshot, string(payload), s.timestamp(),
	)
	return errors.Wrap(err, "failed to save playlist cache")
}

// GetLikedCache fetches the cached liked-songs library for a user.
func (s *Store) GetLikedCache(ctx context.Context, userID string) (int, []track.Track, time.Time, bool, error) {
	var (
		total    int
		payload  string
		cachedAt string
	)
	err := s.db.QueryRowContext(
		ctx,
		"SELECT total_count, tracks_json, cached_at FROM liked_songs_cache WHERE user_id = ?",
		userID,
	).Scan(&total, &payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, time.Time{}, false, nil
	}
	if err != nil {
		return 0, nil, time.Time{}, false, errors.Wrap(err, "failed to query liked songs cache")
	}

	var tracks []track.Track
	if err := json.Unmarshal([]byte(payload), &tracks); err != nil {
		return 0, nil, time.Time{}, false, errors.Wrap(err, "failed to unmarshal cached tracks")
	}
	fetchedAt, err := parseTimestamp(cachedAt)
	if err != nil {
		return 0, nil, time.Time{}, false, err
	}
	return total, tracks, fetchedAt, true, nil
}

// SaveLikedCache stores the liked-songs library with its count, replacing
// any previous entry for the user.
func (s *Store) SaveLikedCache(ctx context.Context, userID string, total int, tracks []track.Track) error {
	payload, err := json.Marshal(tracks)
	if err != nil {
		return errors.Wrap(err, "failed to marshal tracks")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO liked_songs_cache (user_id, total_count, tracks_json, cached_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (user_id) DO UPDATE SET
             total_count = excluded.total_count,
             tracks_json = excluded.tracks_json,
             cached_at = excluded.cached_at`,
		userID, total, string(payload), s.timestamp(),
	)
	return errors.Wrap(err, "failed to save liked songs cache")
}

// GetPlaylistsCache fetches the cached playlist enumeration for a user.
func (s *Store) GetPlaylistsCache(ctx context.Context, userID string) ([]playlist.Summary, time.Time, bool, error) {
	var (
		payload  string
		cachedAt string
	)
	err := s.db.QueryRowContext(
		ctx,
		"SELECT playlists_json, cached_at FROM user_playlists_cache WHERE user_id = ?",
		userID,
	).Scan(&payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, errors.Wrap(err, "failed to query playlists cache")
	}

	var playlists []playlist.Summary
	if err := json.Unmarshal([]byte(payload), &playlists); err != nil {
		return nil, time.Time{}, false, errors.Wrap(err, "failed to unmarshal cached playlists")
	}
	fetchedAt, err := parseTimestamp(cachedAt)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return playlists, fetchedAt, true, nil
}

// SavePlaylistsCache stores the playlist enumeration, replacing any
// previous entry for the user.
func (s *Store) SavePlaylistsCache(ctx context.Context, userID string, playlists []playlist.Summary) error {
	payload, err := json.Marshal(playlists)
	if err != nil {
		return errors.Wrap(err, "failed to marshal playlists")
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO user_playlists_cache (user_id, playlists_json, cached_at)
         VALUES (?, ?, ?)
         ON CONFLICT (user_id) DO UPDATE SET
             playlists_json = excluded.playlists_json,
             cached_at = excluded.cached_at`,
		userID, string(payload), s.timestamp(),
	)
	return errors.Wrap(err, "failed to save playlists cache")
}
