// Package spotify provides the remote track source backed by the Spotify
// Web API, with per-entity caching and rate-limit protection.
package spotify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"dynaplay/internal/app/breaker"
	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/track"
)

// batchLimit is the Spotify API maximum batch size for playlist mutations.
const batchLimit = 100

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Client is a breaker-aware Spotify API client. It performs raw paginated
// fetches and chunked mutations; caching lives in Service.
type Client struct {
	client  *spotify.Client
	breaker *breaker.Breaker
	market  string

	// throttle inserts a courtesy pause between successive pages of the
	// bulk enumeration endpoints, independent of the breaker.
	throttle *rate.Limiter

	mu     sync.Mutex
	userID string
}

// NewClient creates a Spotify client from a refresh token.
func NewClient(ctx context.Context, cfg Config, brk *breaker.Breaker) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.Mark(errors.New("spotify credentials are required"), ErrUnauthenticated)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopeUserLibraryRead,
		),
	)

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	// Token refresh happens inside the oauth2 transport; the breaker
	// transport wraps it to observe 429 responses. Short timeout, no
	// low-level retries: the breaker substitutes for naive retry.
	httpClient := auth.Client(ctx, token)
	httpClient.Transport = &breakerTransport{base: httpClient.Transport, breaker: brk}
	httpClient.Timeout = 10 * time.Second

	return &Client{
		client:   spotify.New(httpClient),
		breaker:  brk,
		market:   cfg.Market,
		throttle: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// trackOptions builds the request options for track-returning endpoints,
// threading the configured market so relinked track IDs match what the
// user's client plays.
func (c *Client) trackOptions(opts ...spotify.RequestOption) []spotify.RequestOption {
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}
	return opts
}

// CurrentUserID returns the authenticated user's ID, fetched once.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID != "" {
		return c.userID, nil
	}
	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return "", c.classify(err)
	}
	c.userID = user.ID
	return c.userID, nil
}

// PlaylistSnapshot fetches the playlist's current change token without
// fetching any tracks.
func (c *Client) PlaylistSnapshot(ctx context.Context, playlistID string) (string, error) {
	p, err := c.client.GetPlaylist(ctx, spotify.ID(extractPlaylistID(playlistID)), spotify.Fields("snapshot_id"))
	if err != nil {
		return "", c.classify(err)
	}
	return p.SnapshotID, nil
}

// PlaylistItems fetches all tracks of a playlist by pagination.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]track.Track, error) {
	id := spotify.ID(extractPlaylistID(playlistID))

	var tracks []track.Track
	offset := 0
	for {
		page, err := c.client.GetPlaylistItems(ctx, id, c.trackOptions(spotify.Limit(batchLimit), spotify.Offset(offset))...)
		if err != nil {
			return nil, c.classify(err)
		}

		for _, item := range page.Items {
			if item.Track.Track == nil {
				continue
			}
			t := convertTrack(item.Track.Track)
			if t.ID == "" {
				continue
			}
			tracks = append(tracks, t)
		}

		if page.Next == "" {
			break
		}
		offset += batchLimit
	}

	return tracks, nil
}

// Playlists enumerates all playlists owned or followed by the user. A
// failure mid-pagination returns the pages accumulated so far, if any.
func (c *Client) Playlists(ctx context.Context) ([]playlist.Summary, error) {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var playlists []playlist.Summary
	offset := 0
	limit := 50
	for {
		page, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			err = c.classify(err)
			if len(playlists) > 0 {
				zlog.Warn().Err(err).Msgf("Playlist fetch interrupted, returning partial list (%d items)", len(playlists))
				return playlists, nil
			}
			return nil, err
		}

		for _, item := range page.Playlists {
			owner := item.Owner.DisplayName
			if owner == "" {
				owner = item.Owner.ID
			}
			imageURL := ""
			if len(item.Images) > 0 {
				imageURL = item.Images[0].URL
			}
			playlists = append(playlists, playlist.Summary{
				ID:         string(item.ID),
				Name:       item.Name,
				Owner:      owner,
				Editable:   item.Owner.ID == userID || item.Collaborative,
				TrackCount: int(item.Tracks.Total),
				ImageURL:   imageURL,
			})
		}

		if page.Next == "" {
			break
		}
		offset += limit

		if err := c.throttle.Wait(ctx); err != nil {
			return playlists, err
		}
	}

	return playlists, nil
}

// LikedTotal fetches the current total count of the user's saved tracks
// with a minimal page-size-1 request.
func (c *Client) LikedTotal(ctx context.Context) (int, error) {
	page, err := c.client.CurrentUsersTracks(ctx, c.trackOptions(spotify.Limit(1))...)
	if err != nil {
		return 0, c.classify(err)
	}
	return int(page.Total), nil
}

// LikedTracks fetches the user's full saved-tracks library. A failure
// mid-pagination returns the pages accumulated so far, if any.
func (c *Client) LikedTracks(ctx context.Context) ([]track.Track, error) {
	var tracks []track.Track
	offset := 0
	limit := 50
	for {
		page, err := c.client.CurrentUsersTracks(ctx, c.trackOptions(spotify.Limit(limit), spotify.Offset(offset))...)
		if err != nil {
			err = c.classify(err)
			if len(tracks) > 0 {
				zlog.Warn().Err(err).Msgf("Liked songs fetch interrupted, returning partial list (%d tracks)", len(tracks))
				return tracks, nil
			}
			return nil, err
		}

		for _, saved := range page.Tracks {
			t := convertTrack(&saved.FullTrack)
			if t.ID == "" {
				continue
			}
			tracks = append(tracks, t)
		}

		if page.Next == "" {
			break
		}
		offset += limit

		if err := c.throttle.Wait(ctx); err != nil {
			return tracks, err
		}
	}

	return tracks, nil
}

// AddTracks appends tracks in batches of at most 100 per call, in order.
// Local and otherwise unsupported URIs are skipped.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	ids := trackIDsFromURIs(uris)
	if len(ids) == 0 {
		return nil
	}

	pid := spotify.ID(extractPlaylistID(playlistID))
	for i := 0; i < len(ids); i += batchLimit {
		end := min(i+batchLimit, len(ids))
		if _, err := c.client.AddTracksToPlaylist(ctx, pid, ids[i:end]...); err != nil {
			return errors.Wrap(c.classify(err), "failed to add tracks to playlist")
		}
	}
	return nil
}

// RemoveTracksAt removes specific occurrences of tracks by position, in
// batches of at most 100. A rejected batch is logged and skipped; the
// remaining batches still run.
func (c *Client) RemoveTracksAt(ctx context.Context, playlistID string, removals []playlist.Removal) error {
	pid := spotify.ID(extractPlaylistID(playlistID))

	toRemove := make([]spotify.TrackToRemove, len(removals))
	for i, r := range removals {
		toRemove[i] = spotify.TrackToRemove{URI: r.URI, Positions: r.Positions}
	}

	for i := 0; i < len(toRemove); i += batchLimit {
		end := min(i+batchLimit, len(toRemove))
		if _, err := c.client.RemoveTracksFromPlaylistOpt(ctx, pid, toRemove[i:end], ""); err != nil {
			zlog.Error().Err(c.classify(err)).Msgf("Failed removal batch %d-%d, skipping", i, end)
		}
	}
	return nil
}

// MoveRange moves a contiguous range of tracks to a new position.
func (c *Client) MoveRange(ctx context.Context, playlistID string, rangeStart, insertBefore, length int) error {
	pid := spotify.ID(extractPlaylistID(playlistID))
	_, err := c.client.ReorderPlaylistTracks(ctx, pid, spotify.PlaylistReorderOptions{
		RangeStart:   spotify.Numeric(rangeStart),
		RangeLength:  spotify.Numeric(length),
		InsertBefore: spotify.Numeric(insertBefore),
	})
	if err != nil {
		return errors.Wrap(c.classify(err), "failed to reorder playlist tracks")
	}
	return nil
}

// ReplaceTracks replaces the playlist's contents with the given URIs: one
// bulk replace with the first 100, then appends for any remainder. An
// empty list clears the playlist.
func (c *Client) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	pid := spotify.ID(extractPlaylistID(playlistID))
	ids := trackIDsFromURIs(uris)

	head := ids
	if len(head) > batchLimit {
		head = ids[:batchLimit]
	}
	if err := c.client.ReplacePlaylistTracks(ctx, pid, head...); err != nil {
		return errors.Wrap(c.classify(err), "failed to replace playlist tracks")
	}

	for i := batchLimit; i < len(ids); i += batchLimit {
		end := min(i+batchLimit, len(ids))
		if _, err := c.client.AddTracksToPlaylist(ctx, pid, ids[i:end]...); err != nil {
			return errors.Wrap(c.classify(err), "failed to append replacement tracks")
		}
	}
	return nil
}

// convertTrack converts a Spotify FullTrack to the domain Track. Local
// files fall back to metadata encoded in their synthetic URI.
func convertTrack(ft *spotify.FullTrack) track.Track {
	names := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		names = append(names, a.Name)
	}

	t := track.Track{
		ID:          string(ft.ID),
		URI:         string(ft.URI),
		Name:        ft.Name,
		Artist:      strings.Join(names, ", "),
		Album:       ft.Album.Name,
		AlbumType:   ft.Album.AlbumType,
		ReleaseDate: ft.Album.ReleaseDate,
		Duration:    time.Duration(ft.Duration) * time.Millisecond,
	}

	if t.AlbumType == "" {
		t.AlbumType = "unknown"
	}

	if track.IsLocalURI(t.URI) {
		if t.ID == "" {
			t.ID = t.URI
		}
		if artist, album, name, ok := track.ParseLocalURI(t.URI); ok {
			if t.Artist == "" {
				t.Artist = artist
			}
			if t.Album == "" {
				t.Album = album
			}
			if t.Name == "" {
				t.Name = name
			}
		}
	}

	return t
}

// trackIDsFromURIs converts track URIs to API IDs, dropping anything the
// mutation endpoints cannot accept (local files, malformed entries).
func trackIDsFromURIs(uris []string) []spotify.ID {
	ids := make([]spotify.ID, 0, len(uris))
	skipped := 0
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if rest, ok := strings.CutPrefix(uri, "spotify:track:"); ok && rest != "" {
			ids = append(ids, spotify.ID(rest))
			continue
		}
		skipped++
	}
	if skipped > 0 {
		zlog.Debug().Msgf("Skipped %d URIs unsupported by the mutation API", skipped)
	}
	return ids
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or
// URI; a plain ID passes through unchanged.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}

	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}

	return input
}
