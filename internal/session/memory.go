package session

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryBackend keeps serialized sessions in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string][]byte{}}
}

func (b *MemoryBackend) Load(_ context.Context, id string) (map[string]any, error) {
	b.mu.Lock()
	raw, ok := b.data[id]
	b.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *MemoryBackend) Save(_ context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.data[id] = raw
	b.mu.Unlock()
	return nil
}
