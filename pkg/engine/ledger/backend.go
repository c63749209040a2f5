package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrUnsupportedBackend is returned by Open for unknown URL schemes.
var ErrUnsupportedBackend = errors.New("ledger: unsupported backend")

// Backend persists ledger entries. An empty containerID passed to Load or
// Delete addresses every container.
type Backend interface {
	Load(ctx context.Context, containerID string) ([]Entry, error)
	// Put inserts or replaces entries, keyed by instance id, in the
	// container.
	Put(ctx context.Context, containerID string, entries []Entry) error
	Delete(ctx context.Context, containerID string) error
	Close() error
}

// MemoryBackend keeps entries in process memory. The error fields let tests
// inject backend failures.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string]Entry

	LoadErr   error
	PutErr    error
	DeleteErr error

	Puts    int
	Deletes int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]Entry)}
}

func (b *MemoryBackend) Load(ctx context.Context, containerID string) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	var out []Entry
	for id, c := range b.data {
		if containerID != "" && id != containerID {
			continue
		}
		for _, e := range c {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (b *MemoryBackend) Put(ctx context.Context, containerID string, entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PutErr != nil {
		return b.PutErr
	}
	b.Puts++
	c, ok := b.data[containerID]
	if !ok {
		c = make(map[string]Entry)
		b.data[containerID] = c
	}
	for _, e := range entries {
		c[e.InstanceID] = e
	}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, containerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.Deletes++
	if containerID == "" {
		clear(b.data)
		return nil
	}
	delete(b.data, containerID)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
