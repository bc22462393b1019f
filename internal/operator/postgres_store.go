package operator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore keeps configs in the operators table as jsonb.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads the config row for id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Config, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("operator: postgres store not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT config FROM operators WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("operator: select config: %w", err)
	}
	return decodeConfig(data)
}

// Put upserts the config row for id.
func (s *PostgresStore) Put(ctx context.Context, id string, cfg *Config) error {
	if s == nil || s.db == nil {
		return errors.New("operator: postgres store not configured")
	}
	data, err := prepare(id, cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operators (id, config, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at
	`, cfg.ID, data, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("operator: upsert config: %w", err)
	}
	return nil
}
