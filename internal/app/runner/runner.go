// Package runner orchestrates a full synchronization run of a dynamic
// playlist configuration.
package runner

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"dynaplay/internal/app/pipeline"
	"dynaplay/internal/app/reconcile"
	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/run"
	"dynaplay/internal/domain/track"
)

// Store is the persistence surface the runner needs.
type Store interface {
	GetConfig(ctx context.Context, id string) (*dynamic.Config, error)
	InsertRun(ctx context.Context, rec *run.Record) error
	UpdateRun(ctx context.Context, rec *run.Record) error
}

// Source is the remote track source: the reconciliation surface plus the
// library reads the collection phase needs.
type Source interface {
	reconcile.Remote
	LikedSongs(ctx context.Context) ([]track.Track, error)
	LikedURIs(ctx context.Context) (map[string]struct{}, error)
}

// Runner executes dynamic playlist configurations.
type Runner struct {
	store  Store
	source Source
	engine *reconcile.Engine
}

// New creates a runner over the given store and track source.
func New(store Store, source Source) *Runner {
	return &Runner{store: store, source: source, engine: reconcile.New(source)}
}

// Run executes the configuration once and records the outcome. The
// returned record is finalized exactly once: success, possibly carrying a
// warning, or failed with the failure's message. An error loading the
// configuration or inserting the initial record fails before any remote
// mutation; there is no rollback of remote changes after that point.
func (r *Runner) Run(ctx context.Context, configID string, trigger run.Trigger, progress reconcile.ProgressFunc) (*run.Record, error) {
	cfg, err := r.store.GetConfig(ctx, configID)
	if err != nil {
		return nil, err
	}

	rec := run.NewRecord(cfg.ID, cfg.Name, trigger)
	if err := r.store.InsertRun(ctx, rec); err != nil {
		return nil, err
	}

	zlog.Info().
		Str("run", rec.ID).
		Str("config", cfg.Name).
		Str("trigger", string(trigger)).
		Msg("Run started")

	desired, warning, err := r.execute(ctx, cfg, rec, progress)
	if err != nil {
		rec.Fail(err.Error())
		if uerr := r.store.UpdateRun(ctx, rec); uerr != nil {
			zlog.Error().Err(uerr).Str("run", rec.ID).Msg("Failed to persist run failure")
		}
		zlog.Error().Err(err).Str("run", rec.ID).Msg("Run failed")
		return rec, err
	}

	rec.Succeed(len(desired), warning)
	if err := r.store.UpdateRun(ctx, rec); err != nil {
		zlog.Error().Err(err).Str("run", rec.ID).Msg("Failed to persist run result")
	}

	evt := zlog.Info().Str("run", rec.ID).Int("tracks", len(desired))
	if warning != "" {
		evt = evt.Str("warning", warning)
	}
	evt.Msg("Run finished")

	return rec, nil
}

// execute builds the desired track list and reconciles the target playlist
// against it, returning the list and any reconciliation warning.
func (r *Runner) execute(
	ctx context.Context,
	cfg *dynamic.Config,
	rec *run.Record,
	progress reconcile.ProgressFunc,
) ([]track.Track, string, error) {
	// The liked URI set is only needed for exclusion filtering.
	var likedURIs map[string]struct{}
	if cfg.Filters.ExcludeLiked {
		set, err := r.source.LikedURIs(ctx)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to fetch liked songs for filtering")
		}
		likedURIs = set
	}

	collected, err := r.collect(ctx, cfg, likedURIs)
	if err != nil {
		return nil, "", err
	}

	desired, err := r.combine(ctx, cfg, collected)
	if err != nil {
		return nil, "", err
	}

	desired = pipeline.DedupeByURI(desired)
	if cfg.Processing.ApplySort {
		desired = pipeline.Sort(desired, cfg.Processing.SortRules)
	}
	if cfg.Processing.ApplyDedupe {
		desired = pipeline.DedupeSemantic(desired, cfg.Processing.Preference)
	}

	uris := make([]string, len(desired))
	details := make(map[string]track.Track, len(desired))
	for i, t := range desired {
		uris[i] = t.URI
		details[t.URI] = t
	}

	warning, err := r.engine.Sync(ctx, cfg.TargetPlaylistID, uris, details, r.trackProgress(ctx, rec, progress))
	if err != nil {
		return nil, "", err
	}
	return desired, warning, nil
}

// collect gathers, filters and samples every configured source.
func (r *Runner) collect(ctx context.Context, cfg *dynamic.Config, likedURIs map[string]struct{}) ([]track.Track, error) {
	var collected []track.Track

	// Sampling happens on the raw source, filtering on the sample: a
	// sampled track that the filters then drop is not replaced, so a
	// source can contribute fewer than its cap.
	appendSource := func(tracks []track.Track) {
		tracks = pipeline.Sample(tracks, cfg.SamplePerSource)
		tracks = pipeline.Filter(tracks, cfg.Filters, likedURIs)
		collected = append(collected, tracks...)
	}

	for _, src := range cfg.Sources {
		switch src.Kind {
		case dynamic.SourcePlaylist:
			tracks, err := r.source.PlaylistTracks(ctx, src.PlaylistID)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to fetch source playlist %s", src.PlaylistID)
			}
			appendSource(tracks)
		case dynamic.SourceLikedSongs:
			tracks, err := r.source.LikedSongs(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "failed to fetch liked songs")
			}
			appendSource(tracks)
		default:
			return nil, errors.Newf("unsupported source kind: %q", src.Kind)
		}
	}

	if cfg.IncludeLikedSongs {
		tracks, err := r.source.LikedSongs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch liked songs")
		}
		appendSource(tracks)
	}

	return collected, nil
}

// combine merges the collected tracks with the target playlist's current
// contents according to the update mode. Replace ignores the current
// contents entirely; merge and append keep them in front, the later URI
// dedupe collapsing any overlap in favor of the existing position.
func (r *Runner) combine(ctx context.Context, cfg *dynamic.Config, collected []track.Track) ([]track.Track, error) {
	switch cfg.UpdateMode {
	case dynamic.ModeReplace, "":
		return collected, nil
	case dynamic.ModeMerge, dynamic.ModeAppend:
		current, err := r.source.PlaylistTracks(ctx, cfg.TargetPlaylistID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch target playlist")
		}
		return append(current, collected...), nil
	default:
		return nil, errors.Newf("unsupported update mode: %q", cfg.UpdateMode)
	}
}

// trackProgress persists reconciliation progress onto the run record and
// forwards it to the caller's callback. Persistence failures only log;
// progress is advisory.
func (r *Runner) trackProgress(ctx context.Context, rec *run.Record, progress reconcile.ProgressFunc) reconcile.ProgressFunc {
	return func(processed, total int) {
		rec.TracksProcessed = processed
		if err := r.store.UpdateRun(ctx, rec); err != nil {
			zlog.Debug().Err(err).Str("run", rec.ID).Msg("Failed to persist run progress")
		}
		if progress != nil {
			progress(processed, total)
		}
	}
}
