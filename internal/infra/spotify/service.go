package spotify

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"dynaplay/internal/app/breaker"
	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/track"
)

const (
	// likedTTL bounds how long a liked-songs cache entry is trusted even
	// when the library count has not changed.
	likedTTL = 24 * time.Hour

	// playlistsTTL bounds the cached playlist enumeration.
	playlistsTTL = 60 * time.Minute

	// fallbackUserKey keys user-scoped caches when the profile endpoint
	// is unavailable.
	fallbackUserKey = "current_user"
)

// api is the raw Spotify surface the service builds on.
type api interface {
	CurrentUserID(ctx context.Context) (string, error)
	PlaylistSnapshot(ctx context.Context, playlistID string) (string, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]track.Track, error)
	Playlists(ctx context.Context) ([]playlist.Summary, error)
	LikedTotal(ctx context.Context) (int, error)
	LikedTracks(ctx context.Context) ([]track.Track, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	RemoveTracksAt(ctx context.Context, playlistID string, removals []playlist.Removal) error
	MoveRange(ctx context.Context, playlistID string, rangeStart, insertBefore, length int) error
	ReplaceTracks(ctx context.Context, playlistID string, uris []string) error
}

// CacheStore persists fetched Spotify data between runs. Lookups report a
// miss with ok=false; an error means the store itself failed.
type CacheStore interface {
	GetPlaylistCache(ctx context.Context, playlistID string) (snapshot string, tracks []track.Track, ok bool, err error)
	SavePlaylistCache(ctx context.Context, playlistID, snapshot string, tracks []track.Track) error
	GetLikedCache(ctx context.Context, userID string) (total int, tracks []track.Track, fetchedAt time.Time, ok bool, err error)
	SaveLikedCache(ctx context.Context, userID string, total int, tracks []track.Track) error
	GetPlaylistsCache(ctx context.Context, userID string) (playlists []playlist.Summary, fetchedAt time.Time, ok bool, err error)
	SavePlaylistsCache(ctx context.Context, userID string, playlists []playlist.Summary) error
}

// Service layers change-detection caching over the raw client. Playlist
// tracks are keyed by snapshot ID, liked songs by library count with a
// time bound, and the playlist enumeration by a plain TTL.
//
// Service satisfies the reconciliation engine's Remote interface.
type Service struct {
	api     api
	cache   CacheStore
	breaker *breaker.Breaker

	// now is swapped in tests.
	now func() time.Time
}

// NewService creates a cache-aware Spotify service.
func NewService(client *Client, cache CacheStore, brk *breaker.Breaker) *Service {
	return &Service{api: client, cache: cache, breaker: brk, now: time.Now}
}

// CurrentUserID returns the authenticated user's ID.
func (s *Service) CurrentUserID(ctx context.Context) (string, error) {
	return s.api.CurrentUserID(ctx)
}

// PlaylistTracks returns the playlist's tracks, served from cache when the
// remote snapshot ID still matches the cached one. Cache failures degrade
// to a live fetch.
func (s *Service) PlaylistTracks(ctx context.Context, playlistID string) ([]track.Track, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, err
	}

	playlistID = extractPlaylistID(playlistID)

	snapshot, err := s.api.PlaylistSnapshot(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	cachedSnapshot, cached, ok, err := s.cache.GetPlaylistCache(ctx, playlistID)
	if err != nil {
		zlog.Warn().Err(err).Str("playlist", playlistID).Msg("Playlist cache read failed, fetching live")
	} else if ok && cachedSnapshot == snapshot {
		zlog.Debug().Str("playlist", playlistID).Msgf("Playlist cache hit (%d tracks)", len(cached))
		return cached, nil
	}

	tracks, err := s.api.PlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SavePlaylistCache(ctx, playlistID, snapshot, tracks); err != nil {
		zlog.Warn().Err(err).Str("playlist", playlistID).Msg("Playlist cache write failed")
	}
	return tracks, nil
}

// LikedSongs returns the user's saved tracks. The cache is reused while
// the library count is unchanged and the entry is under a day old. If the
// count probe fails but a cache entry exists, the stale entry is returned.
func (s *Service) LikedSongs(ctx context.Context) ([]track.Track, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, err
	}

	userID := s.userCacheKey(ctx)

	total, err := s.api.LikedTotal(ctx)
	if err != nil {
		if _, cached, _, ok, cerr := s.cache.GetLikedCache(ctx, userID); cerr == nil && ok {
			zlog.Warn().Err(err).Msgf("Liked songs count probe failed, using cached list (%d tracks)", len(cached))
			return cached, nil
		}
		return nil, err
	}

	cachedTotal, cached, fetchedAt, ok, err := s.cache.GetLikedCache(ctx, userID)
	if err != nil {
		zlog.Warn().Err(err).Msg("Liked songs cache read failed, fetching live")
	} else if ok && cachedTotal == total && s.now().Sub(fetchedAt) < likedTTL {
		zlog.Debug().Msgf("Liked songs cache hit (%d tracks)", len(cached))
		return cached, nil
	}

	tracks, err := s.api.LikedTracks(ctx)
	if err != nil {
		return nil, err
	}

	// The fetch can return fewer tracks than the probe reported when a
	// page failed mid-way; store the count actually fetched so the next
	// comparison stays consistent with the stored list.
	if err := s.cache.SaveLikedCache(ctx, userID, len(tracks), tracks); err != nil {
		zlog.Warn().Err(err).Msg("Liked songs cache write failed")
	}
	return tracks, nil
}

// LikedURIs returns the saved-tracks library as a URI set, for exclusion
// filtering.
func (s *Service) LikedURIs(ctx context.Context) (map[string]struct{}, error) {
	tracks, err := s.LikedSongs(ctx)
	if err != nil {
		return nil, err
	}
	uris := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		uris[t.URI] = struct{}{}
	}
	return uris, nil
}

// ListPlaylists enumerates the user's playlists, cached for an hour unless
// force is set.
func (s *Service) ListPlaylists(ctx context.Context, force bool) ([]playlist.Summary, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, err
	}

	userID := s.userCacheKey(ctx)

	if !force {
		cached, fetchedAt, ok, err := s.cache.GetPlaylistsCache(ctx, userID)
		if err != nil {
			zlog.Warn().Err(err).Msg("Playlist list cache read failed, fetching live")
		} else if ok && s.now().Sub(fetchedAt) < playlistsTTL {
			zlog.Debug().Msgf("Playlist list cache hit (%d playlists)", len(cached))
			return cached, nil
		}
	}

	playlists, err := s.api.Playlists(ctx)
	if err != nil {
		if cached, _, ok, cerr := s.cache.GetPlaylistsCache(ctx, userID); cerr == nil && ok {
			zlog.Warn().Err(err).Msgf("Playlist fetch failed, using cached list (%d playlists)", len(cached))
			return cached, nil
		}
		return nil, err
	}

	if err := s.cache.SavePlaylistsCache(ctx, userID, playlists); err != nil {
		zlog.Warn().Err(err).Msg("Playlist list cache write failed")
	}
	return playlists, nil
}

// AddTracks appends tracks to the playlist.
func (s *Service) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := s.breaker.Allow(); err != nil {
		return err
	}
	return s.api.AddTracks(ctx, playlistID, uris)
}

// RemoveTracksAt removes specific track occurrences by position.
func (s *Service) RemoveTracksAt(ctx context.Context, playlistID string, removals []playlist.Removal) error {
	if err := s.breaker.Allow(); err != nil {
		return err
	}
	return s.api.RemoveTracksAt(ctx, playlistID, removals)
}

// MoveRange moves a contiguous range of tracks to a new position.
func (s *Service) MoveRange(ctx context.Context, playlistID string, rangeStart, insertBefore, length int) error {
	if err := s.breaker.Allow(); err != nil {
		return err
	}
	return s.api.MoveRange(ctx, playlistID, rangeStart, insertBefore, length)
}

// ReplaceTracks replaces the playlist's full contents. The playlist cache
// entry becomes stale automatically: the mutation changes the snapshot ID,
// so the next PlaylistTracks call refetches.
func (s *Service) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := s.breaker.Allow(); err != nil {
		return err
	}
	return s.api.ReplaceTracks(ctx, playlistID, uris)
}

// userCacheKey resolves the key for user-scoped cache entries. Profile
// lookup failures fall back to a shared key rather than failing the
// operation, since the token identifies a single user anyway.
func (s *Service) userCacheKey(ctx context.Context) string {
	userID, err := s.api.CurrentUserID(ctx)
	if err != nil || userID == "" {
		return fallbackUserKey
	}
	return userID
}
