package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/run"
)

// SaveConfig inserts or updates a dynamic playlist configuration. A
// missing ID gets a fresh one assigned.
func (s *Store) SaveConfig(ctx context.Context, cfg *dynamic.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = run.NewID()
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal configuration")
	}

	now := s.timestamp()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO dynamic_configs (id, name, config_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
             name = excluded.name,
             config_json = excluded.config_json,
             updated_at = excluded.updated_at`,
		cfg.ID, cfg.Name, string(payload), now, now,
	)
	return errors.Wrap(err, "failed to save configuration")
}

// GetConfig fetches a configuration by ID.
func (s *Store) GetConfig(ctx context.Context, id string) (*dynamic.Config, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT config_json FROM dynamic_configs WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.Newf("configuration %q does not exist", id), ErrConfigNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query configuration")
	}

	var cfg dynamic.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

// ListConfigs returns all configurations ordered by name.
func (s *Store) ListConfigs(ctx context.Context) ([]*dynamic.Config, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT config_json FROM dynamic_configs ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query configurations")
	}
	defer rows.Close()

	var configs []*dynamic.Config
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan configuration")
		}
		var cfg dynamic.Config
		if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal configuration")
		}
		configs = append(configs, &cfg)
	}
	return configs, errors.Wrap(rows.Err(), "failed to iterate configurations")
}

// DeleteConfig removes a configuration by ID.
func (s *Store) DeleteConfig(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dynamic_configs WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete configuration")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return errors.Mark(errors.Newf("configuration %q does not exist", id), ErrConfigNotFound)
	}
	return nil
}
