package ai

import (
	"context"
	"database/sql"
)

type repo struct {
	db *sql.DB
}

// NewRepo keeps transcripts in the messages table, one row per turn keyed by
// the conversation token.
func NewRepo(ctx context.Context, db *sql.DB) (Repo, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id         BIGSERIAL PRIMARY KEY,
			chat_id    TEXT NOT NULL,
			sender     TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS messages_chat_id_idx ON messages (chat_id, created_at)`); err != nil {
		return nil, err
	}
	return &repo{db: db}, nil
}

func (r *repo) SaveMessage(ctx context.Context, conversationID string, msg Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, sender, text)
		VALUES ($1, $2, $3)
	`,
		conversationID,
		msg.Role,
		msg.Text,
	)
	return err
}

func (r *repo) History(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender, text, extract(epoch from created_at)::bigint
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}
