package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type postgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend stores sessions as JSONB rows. The sessions table is
// created when missing.
func NewPostgresBackend(ctx context.Context, db *sql.DB) (Backend, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return nil, err
	}
	return &postgresBackend{db: db}, nil
}

func (r *postgresBackend) Load(ctx context.Context, id string) (map[string]any, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM sessions WHERE id = $1
	`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresBackend) Save(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, id, raw)
	return err
}
