package runner

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/run"
	"dynaplay/internal/domain/track"
	"dynaplay/internal/infra/store"
)

type fakeStore struct {
	configs map[string]*dynamic.Config
	inserts []*run.Record
	updates []*run.Record
}

func newFakeStore(cfgs ...*dynamic.Config) *fakeStore {
	s := &fakeStore{configs: make(map[string]*dynamic.Config)}
	for _, c := range cfgs {
		s.configs[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetConfig(_ context.Context, id string) (*dynamic.Config, error) {
	cfg, ok := s.configs[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("configuration %q does not exist", id), store.ErrConfigNotFound)
	}
	return cfg, nil
}

// The runner keeps mutating the record it handed over, so the fake
// snapshots a copy per call like a real store persists a row.
func (s *fakeStore) InsertRun(_ context.Context, rec *run.Record) error {
	snapshot := *rec
	s.inserts = append(s.inserts, &snapshot)
	return nil
}

func (s *fakeStore) UpdateRun(_ context.Context, rec *run.Record) error {
	snapshot := *rec
	s.updates = append(s.updates, &snapshot)
	return nil
}

type fakeSource struct {
	playlists map[string][]track.Track
	liked     []track.Track
	likedErr  error
	target    string
}

func (f *fakeSource) PlaylistTracks(_ context.Context, playlistID string) ([]track.Track, error) {
	tracks, ok := f.playlists[playlistID]
	if !ok {
		return nil, errors.New("unknown playlist")
	}
	out := make([]track.Track, len(tracks))
	copy(out, tracks)
	return out, nil
}

func (f *fakeSource) LikedSongs(context.Context) ([]track.Track, error) {
	return f.liked, f.likedErr
}

func (f *fakeSource) LikedURIs(context.Context) (map[string]struct{}, error) {
	if f.likedErr != nil {
		return nil, f.likedErr
	}
	set := make(map[string]struct{}, len(f.liked))
	for _, t := range f.liked {
		set[t.URI] = struct{}{}
	}
	return set, nil
}

func (f *fakeSource) targetTracks() []track.Track {
	return f.playlists[f.target]
}

func (f *fakeSource) setTarget(uris []string) {
	tracks := make([]track.Track, len(uris))
	for i, uri := range uris {
		tracks[i] = track.Track{ID: uri, URI: uri}
	}
	f.playlists[f.target] = tracks
}

func (f *fakeSource) AddTracks(_ context.Context, playlistID string, uris []string) error {
	current := f.targetURIs()
	f.setTarget(append(current, uris...))
	return nil
}

func (f *fakeSource) RemoveTracksAt(_ context.Context, playlistID string, removals []playlist.Removal) error {
	current := f.targetURIs()
	var positions []int
	for _, r := range removals {
		positions = append(positions, r.Positions...)
	}
	for i := len(positions) - 1; i >= 0; i-- {
		p := positions[i]
		current = append(current[:p], current[p+1:]...)
	}
	f.setTarget(current)
	return nil
}

func (f *fakeSource) MoveRange(_ context.Context, playlistID string, rangeStart, insertBefore, length int) error {
	current := f.targetURIs()
	moved := current[rangeStart]
	current = append(current[:rangeStart], current[rangeStart+1:]...)
	if insertBefore > rangeStart {
		insertBefore--
	}
	current = append(current[:insertBefore], append([]string{moved}, current[insertBefore:]...)...)
	f.setTarget(current)
	return nil
}

func (f *fakeSource) ReplaceTracks(_ context.Context, playlistID string, uris []string) error {
	f.setTarget(uris)
	return nil
}

func (f *fakeSource) targetURIs() []string {
	tracks := f.targetTracks()
	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.URI
	}
	return uris
}

func tr(id, name, artist string) track.Track {
	return track.Track{ID: id, URI: "spotify:track:" + id, Name: name, Artist: artist}
}

func baseConfig() *dynamic.Config {
	return &dynamic.Config{
		ID:               "cfg1",
		Name:             "Test Mix",
		TargetPlaylistID: "target",
		Sources: []dynamic.Source{
			{Kind: dynamic.SourcePlaylist, PlaylistID: "src1"},
		},
		UpdateMode: dynamic.ModeReplace,
		Enabled:    true,
	}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		playlists: map[string][]track.Track{"target": nil},
		target:    "target",
	}
}

func TestRun_Success(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), tr("b", "B", "Y")}

	rec, err := New(st, src).Run(ctx, "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)

	assert.Equal(t, run.StatusSuccess, rec.Status)
	assert.Equal(t, 2, rec.TracksProcessed)
	assert.Empty(t, rec.WarningMessage)
	assert.NotNil(t, rec.FinishedAt)
	assert.Equal(t, run.TriggerManual, rec.TriggeredBy)

	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, src.targetURIs())

	require.Len(t, st.inserts, 1)
	assert.Equal(t, run.StatusRunning, st.inserts[0].Status)
	require.NotEmpty(t, st.updates)
	assert.Equal(t, run.StatusSuccess, st.updates[len(st.updates)-1].Status)
}

func TestRun_UnknownConfig(t *testing.T) {
	st := newFakeStore()
	_, err := New(st, newFakeSource()).Run(context.Background(), "nope", run.TriggerManual, nil)
	assert.True(t, errors.Is(err, store.ErrConfigNotFound))
	assert.Empty(t, st.inserts)
}

func TestRun_SourceFailureFinalizesFailed(t *testing.T) {
	cfg := baseConfig()
	st := newFakeStore(cfg)
	src := newFakeSource()
	// src1 missing: collection fails after the running record is inserted.

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerSchedule, nil)
	require.Error(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, run.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "src1")
	assert.NotNil(t, rec.FinishedAt)
	require.Len(t, st.inserts, 1)
	require.NotEmpty(t, st.updates)
	assert.Equal(t, run.StatusFailed, st.updates[len(st.updates)-1].Status)
}

func TestRun_WarningStillSucceeds(t *testing.T) {
	cfg := baseConfig()
	st := newFakeStore(cfg)
	src := newFakeSource()
	local := track.Track{
		ID:     "spotify:local:X:Alb:Song:100",
		URI:    "spotify:local:X:Alb:Song:100",
		Name:   "Song",
		Artist: "X",
	}
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), local}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)

	assert.Equal(t, run.StatusSuccess, rec.Status)
	assert.Contains(t, rec.WarningMessage, "Skipped 1 local files (API restriction)")
	assert.Contains(t, rec.WarningMessage, "X - Song")
}

func TestRun_ExcludeLikedFilter(t *testing.T) {
	cfg := baseConfig()
	cfg.Filters.ExcludeLiked = true
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), tr("b", "B", "Y")}
	src.liked = []track.Track{tr("a", "A", "X")}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TracksProcessed)
	assert.Equal(t, []string{"spotify:track:b"}, src.targetURIs())
}

func TestRun_SamplePerSource(t *testing.T) {
	cfg := baseConfig()
	sample := 1
	cfg.SamplePerSource = &sample
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), tr("b", "B", "Y"), tr("c", "C", "Z")}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TracksProcessed)
	assert.Len(t, src.targetURIs(), 1)
}

func TestRun_SampleRunsBeforeFilter(t *testing.T) {
	// A sampled track that the blacklist then drops is not replaced:
	// with 4 tracks, one blacklisted, and a cap of 3, runs that sample
	// the blacklisted track end up with only 2. Filtering first would
	// make every run produce exactly 3.
	sample := 3
	sawShortfall := false
	for i := 0; i < 60 && !sawShortfall; i++ {
		cfg := baseConfig()
		cfg.SamplePerSource = &sample
		cfg.Filters.KeywordBlacklist = []string{"skipme"}
		st := newFakeStore(cfg)
		src := newFakeSource()
		src.playlists["src1"] = []track.Track{
			tr("a", "A", "X"),
			tr("b", "B", "Y"),
			tr("c", "C", "Z"),
			tr("d", "skipme", "W"),
		}

		rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, rec.TracksProcessed, 3)
		if rec.TracksProcessed == 2 {
			sawShortfall = true
		}
	}
	assert.True(t, sawShortfall, "no run fell short of the cap: filtering must follow sampling")
}

func TestRun_IncludeLikedSongs(t *testing.T) {
	cfg := baseConfig()
	cfg.Sources = nil
	cfg.IncludeLikedSongs = true
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.liked = []track.Track{tr("a", "A", "X"), tr("b", "B", "Y")}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TracksProcessed)
}

func TestRun_MergeKeepsCurrentInFront(t *testing.T) {
	cfg := baseConfig()
	cfg.UpdateMode = dynamic.ModeMerge
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.setTarget([]string{"spotify:track:x"})
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), tr("x", "X", "W")}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TracksProcessed)
	assert.Equal(t, []string{"spotify:track:x", "spotify:track:a"}, src.targetURIs())
}

func TestRun_SortAndDedupeApplied(t *testing.T) {
	cfg := baseConfig()
	cfg.Processing = dynamic.Processing{
		ApplySort:   true,
		SortRules:   []dynamic.SortRule{{Criterion: dynamic.ByArtist}},
		ApplyDedupe: true,
		Preference:  dynamic.KeepFirstAdded,
	}
	st := newFakeStore(cfg)
	src := newFakeSource()
	src.playlists["src1"] = []track.Track{
		tr("c", "Same Song", "Zed"),
		tr("a", "Alpha", "Ann"),
		tr("d", "Same Song", "Zed"),
	}

	rec, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TracksProcessed)
	assert.Equal(t, []string{"spotify:track:a", "spotify:track:c"}, src.targetURIs())
}

func TestRun_ProgressForwarded(t *testing.T) {
	cfg := baseConfig()
	st := newFakeStore(cfg)
	src := newFakeSource()
	// A local in the source forces the incremental path, which reports
	// progress.
	local := track.Track{ID: "spotify:local:X:Alb:S:1", URI: "spotify:local:X:Alb:S:1", Name: "S", Artist: "X"}
	src.playlists["src1"] = []track.Track{tr("a", "A", "X"), local}

	var calls [][2]int
	_, err := New(st, src).Run(context.Background(), "cfg1", run.TriggerManual, func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	})
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	assert.Equal(t, [2]int{0, 2}, calls[0])
	last := calls[len(calls)-1]
	assert.Equal(t, last[0], last[1])
}
