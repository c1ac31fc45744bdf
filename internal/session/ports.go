package session

import "context"

// Backend persists the whole state of one session. Load returns a nil map and no
// error when the session does not exist yet.
type Backend interface {
	Load(ctx context.Context, id string) (map[string]any, error)
	Save(ctx context.Context, id string, data map[string]any) error
}
