package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/playlist"
	"dynaplay/internal/domain/run"
	"dynaplay/internal/domain/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dynaplay.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func testConfig(name string) *dynamic.Config {
	return &dynamic.Config{
		Name:             name,
		TargetPlaylistID: "target1",
		Sources: []dynamic.Source{
			{Kind: dynamic.SourcePlaylist, PlaylistID: "src1"},
		},
		UpdateMode: dynamic.ModeReplace,
		Enabled:    true,
	}
}

func TestConfigCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("save assigns an ID", func(t *testing.T) {
		cfg := testConfig("Morning Mix")
		require.NoError(t, s.SaveConfig(ctx, cfg))
		assert.NotEmpty(t, cfg.ID)
	})

	t.Run("round trip", func(t *testing.T) {
		cfg := testConfig("Evening Mix")
		sample := 25
		cfg.SamplePerSource = &sample
		cfg.Filters.KeywordBlacklist = []string{"live", "remix"}
		cfg.Processing = dynamic.Processing{
			ApplySort:   true,
			SortRules:   []dynamic.SortRule{{Criterion: dynamic.ByArtist}},
			ApplyDedupe: true,
			Preference:  dynamic.KeepOldestRelease,
		}
		require.NoError(t, s.SaveConfig(ctx, cfg))

		got, err := s.GetConfig(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})

	t.Run("save updates in place", func(t *testing.T) {
		cfg := testConfig("Workout")
		require.NoError(t, s.SaveConfig(ctx, cfg))

		cfg.Name = "Workout v2"
		require.NoError(t, s.SaveConfig(ctx, cfg))

		got, err := s.GetConfig(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, "Workout v2", got.Name)
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := testConfig("Broken")
		cfg.TargetPlaylistID = ""
		assert.Error(t, s.SaveConfig(ctx, cfg))
	})

	t.Run("get unknown ID", func(t *testing.T) {
		_, err := s.GetConfig(ctx, "nope")
		assert.True(t, errors.Is(err, ErrConfigNotFound))
	})

	t.Run("list ordered by name", func(t *testing.T) {
		configs, err := s.ListConfigs(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, configs)
		for i := 1; i < len(configs); i++ {
			assert.LessOrEqual(t, configs[i-1].Name, configs[i].Name)
		}
	})

	t.Run("delete", func(t *testing.T) {
		cfg := testConfig("Ephemeral")
		require.NoError(t, s.SaveConfig(ctx, cfg))
		require.NoError(t, s.DeleteConfig(ctx, cfg.ID))

		_, err := s.GetConfig(ctx, cfg.ID)
		assert.True(t, errors.Is(err, ErrConfigNotFound))
		assert.True(t, errors.Is(s.DeleteConfig(ctx, cfg.ID), ErrConfigNotFound))
	})
}

func TestRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := run.NewRecord("cfg1", "Morning Mix", run.TriggerManual)
	require.NoError(t, s.InsertRun(ctx, rec))

	t.Run("running record listed", func(t *testing.T) {
		records, err := s.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, run.StatusRunning, records[0].Status)
		assert.Nil(t, records[0].FinishedAt)
	})

	t.Run("finalized record round trips", func(t *testing.T) {
		rec.Succeed(42, "Skipped 1 local files (API restriction):\n- a - b • c (No Date)\n\nPlease manually copy these files to the target device/playlist.")
		require.NoError(t, s.UpdateRun(ctx, rec))

		records, err := s.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		got := records[0]
		assert.Equal(t, run.StatusSuccess, got.Status)
		assert.Equal(t, 42, got.TracksProcessed)
		assert.Equal(t, rec.WarningMessage, got.WarningMessage)
		require.NotNil(t, got.FinishedAt)
		assert.WithinDuration(t, *rec.FinishedAt, *got.FinishedAt, time.Second)
	})

	t.Run("newest first with limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			r := run.NewRecord("cfg1", "Morning Mix", run.TriggerSchedule)
			r.StartedAt = time.Now().Add(time.Duration(i+1) * time.Minute)
			require.NoError(t, s.InsertRun(ctx, r))
		}

		records, err := s.ListRuns(ctx, 2)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.True(t, records[0].StartedAt.After(records[1].StartedAt))
	})

	t.Run("failed record keeps message", func(t *testing.T) {
		r := run.NewRecord("cfg1", "Morning Mix", run.TriggerManual)
		// Later than anything the previous subtest inserted, so the
		// newest-first limit-1 query returns this record.
		r.StartedAt = time.Now().Add(time.Hour)
		require.NoError(t, s.InsertRun(ctx, r))
		r.Fail("rate limited by Spotify, please wait 30s")
		require.NoError(t, s.UpdateRun(ctx, r))

		records, err := s.ListRuns(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, run.StatusFailed, records[0].Status)
		assert.Contains(t, records[0].ErrorMessage, "rate limited")
	})

	t.Run("update unknown record", func(t *testing.T) {
		ghost := run.NewRecord("cfg1", "Morning Mix", run.TriggerManual)
		assert.Error(t, s.UpdateRun(ctx, ghost))
	})

	t.Run("clear", func(t *testing.T) {
		removed, err := s.ClearRuns(ctx)
		require.NoError(t, err)
		assert.Greater(t, removed, int64(0))

		records, err := s.ListRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestPlaylistCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tracks := []track.Track{
		{ID: "a", URI: "spotify:track:a", Name: "A", Artist: "X", Duration: 3 * time.Minute},
	}

	_, _, ok, err := s.GetPlaylistCache(ctx, "pl1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SavePlaylistCache(ctx, "pl1", "snap1", tracks))

	snapshot, got, ok, err := s.GetPlaylistCache(ctx, "pl1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "snap1", snapshot)
	assert.Equal(t, tracks, got)

	require.NoError(t, s.SavePlaylistCache(ctx, "pl1", "snap2", nil))
	snapshot, got, ok, err = s.GetPlaylistCache(ctx, "pl1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "snap2", snapshot)
	assert.Empty(t, got)
}

func TestLikedCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tracks := []track.Track{
		{ID: "a", URI: "spotify:track:a", Name: "A", Artist: "X"},
		{ID: "b", URI: "spotify:track:b", Name: "B", Artist: "Y"},
	}

	_, _, _, ok, err := s.GetLikedCache(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, ok)

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.SaveLikedCache(ctx, "user1", 2, tracks))

	total, got, fetchedAt, ok, err := s.GetLikedCache(ctx, "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, total)
	assert.Equal(t, tracks, got)
	assert.True(t, fetchedAt.After(before))

	// Entries are per user.
	_, _, _, ok, err = s.GetLikedCache(ctx, "user2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlaylistsCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	summaries := []playlist.Summary{
		{ID: "pl1", Name: "Mix", Owner: "user1", Editable: true, TrackCount: 12},
	}

	_, _, ok, err := s.GetPlaylistsCache(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SavePlaylistsCache(ctx, "user1", summaries))

	got, fetchedAt, ok, err := s.GetPlaylistsCache(ctx, "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summaries, got)
	assert.False(t, fetchedAt.IsZero())
}
