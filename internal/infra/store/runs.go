package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"dynaplay/internal/domain/run"
)

// InsertRun records a newly started run.
func (s *Store) InsertRun(ctx context.Context, rec *run.Record) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_history (
            id, config_id, config_name, started_at, finished_at, status,
            tracks_processed, error_message, warning_message, triggered_by
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ConfigID,
		rec.ConfigName,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		nil,
		rec.Status,
		rec.TracksProcessed,
		nullableString(rec.ErrorMessage),
		nullableString(rec.WarningMessage),
		rec.TriggeredBy,
	)
	return errors.Wrap(err, "failed to insert run record")
}

// UpdateRun persists the run's final state.
func (s *Store) UpdateRun(ctx context.Context, rec *run.Record) error {
	var finishedAt any
	if rec.FinishedAt != nil {
		finishedAt = rec.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE run_history SET
            finished_at = ?, status = ?, tracks_processed = ?,
            error_message = ?, warning_message = ?
         WHERE id = ?`,
		finishedAt,
		rec.Status,
		rec.TracksProcessed,
		nullableString(rec.ErrorMessage),
		nullableString(rec.WarningMessage),
		rec.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update run record")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return errors.Newf("run record %q does not exist", rec.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*run.Record, error) {
	query := `SELECT id, config_id, config_name, started_at, finished_at, status,
                     tracks_processed, error_message, warning_message, triggered_by
              FROM run_history ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query run history")
	}
	defer rows.Close()

	var records []*run.Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to iterate run history")
}

// ClearRuns deletes all run history and returns the number of rows removed.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM run_history")
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear run history")
	}
	affected, err := res.RowsAffected()
	return affected, errors.Wrap(err, "failed to read affected rows")
}

func scanRun(rows *sql.Rows) (*run.Record, error) {
	var (
		rec        run.Record
		startedAt  string
		finishedAt sql.NullString
		errMsg     sql.NullString
		warnMsg    sql.NullString
	)
	if err := rows.Scan(
		&rec.ID, &rec.ConfigID, &rec.ConfigName, &startedAt, &finishedAt,
		&rec.Status, &rec.TracksProcessed, &errMsg, &warnMsg, &rec.TriggeredBy,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan run record")
	}

	started, err := parseTimestamp(startedAt)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = started

	if finishedAt.Valid {
		finished, err := parseTimestamp(finishedAt.String)
		if err != nil {
			return nil, err
		}
		rec.FinishedAt = &finished
	}
	rec.ErrorMessage = errMsg.String
	rec.WarningMessage = warnMsg.String

	return &rec, nil
}
