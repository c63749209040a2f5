// Package ledger records which template instances have been placed in
// which container, so reopening a container never spawns them twice.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Entry is one placed instance.
type Entry struct {
	ContainerID string        `json:"container_id"`
	InstanceID  string        `json:"instance_id"`
	TemplateID  string        `json:"template_id"`
	ItemKind    string        `json:"item_kind"`
	Quantity    int           `json:"quantity"`
	Position    grid.Position `json:"position"`
	Rotated     bool          `json:"rotated"`
	Handle      string        `json:"handle,omitempty"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// op is one journalled mutation waiting for Save.
type op struct {
	reset     bool
	container string // "" with reset clears everything
	entry     Entry
}

// Ledger is the in-memory spawn state plus a journal of changes not yet
// persisted. All methods are safe for concurrent use; hosts typically call
// Save on pause, focus loss and shutdown.
type Ledger struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]map[string]Entry
	journal []op

	saveMu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) { lg.logger = l }
}

// WithClock overrides the time source used for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// New creates an empty ledger on backend. A nil backend keeps state in
// memory only.
func New(backend Backend, opts ...Option) *Ledger {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	l := &Ledger{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]map[string]Entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Backend returns the persistence backend.
func (l *Ledger) Backend() Backend { return l.backend }

// Has reports whether the instance is recorded for the container.
func (l *Ledger) Has(containerID, instanceID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[containerID][instanceID]
	return ok
}

// ShouldSpawn is false only for unique instances already recorded.
func (l *Ledger) ShouldSpawn(containerID, instanceID string, unique bool) bool {
	return !unique || !l.Has(containerID, instanceID)
}

// Record stores e and journals it for the next Save. A zero RecordedAt is
// stamped with the ledger clock.
func (l *Ledger) Record(e Entry) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = l.now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(e)
	l.journal = append(l.journal, op{container: e.ContainerID, entry: e})
}

func (l *Ledger) put(e Entry) {
	c, ok := l.entries[e.ContainerID]
	if !ok {
		c = make(map[string]Entry)
		l.entries[e.ContainerID] = c
	}
	c[e.InstanceID] = e
}

// Entries returns the container's entries ordered by instance id.
func (l *Ledger) Entries(containerID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedEntries(l.entries[containerID])
}

// Count returns how many entries of templateID the container holds.
func (l *Ledger) Count(containerID, templateID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries[containerID] {
		if e.TemplateID == templateID {
			n++
		}
	}
	return n
}

// Containers lists container ids with at least one entry.
func (l *Ledger) Containers() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.entries))
	for id, c := range l.entries {
		if len(c) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ResetContainer forgets every entry of the container.
func (l *Ledger) ResetContainer(containerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, containerID)
	l.journal = append(l.journal, op{reset: true, container: containerID})
}

// ResetAll forgets every entry.
func (l *Ledger) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.journal = []op{{reset: true}}
}

// Pending returns the number of journalled operations not yet saved.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.journal)
}

// Save flushes the journal to the backend in order. Consecutive records of
// one container are written as one batch. On failure the unsaved tail stays
// journalled and a later Save retries it.
func (l *Ledger) Save(ctx context.Context) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	ops := l.journal
	l.journal = nil
	l.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	for i := 0; i < len(ops); {
		o := ops[i]
		if o.reset {
			if err := l.backend.Delete(ctx, o.container); err != nil {
				l.requeue(ops[i:])
				return fmt.Errorf("failed to reset ledger container %q: %w", o.container, err)
			}
			i++
			continue
		}

		j := i
		var batch []Entry
		for j < len(ops) && !ops[j].reset && ops[j].container == o.container {
			batch = append(batch, ops[j].entry)
			j++
		}
		if err := l.backend.Put(ctx, o.container, batch); err != nil {
			l.requeue(ops[i:])
			return fmt.Errorf("failed to save ledger container %q: %w", o.container, err)
		}
		i = j
	}

	l.logger.DebugContext(ctx, "ledger saved", "operations", len(ops))
	return nil
}

func (l *Ledger) requeue(ops []op) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = append(append([]op(nil), ops...), l.journal...)
}

// Load replaces the in-memory state with the backend's and replays any
// operations that were journalled but not yet saved.
func (l *Ledger) Load(ctx context.Context) error {
	loaded, err := l.backend.Load(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	for _, e := range loaded {
		l.put(e)
	}
	for _, o := range l.journal {
		switch {
		case o.reset && o.container == "":
			clear(l.entries)
		case o.reset:
			delete(l.entries, o.container)
		default:
			l.put(o.entry)
		}
	}

	l.logger.DebugContext(ctx, "ledger loaded", "entries", len(loaded), "containers", len(l.entries))
	return nil
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

func sortedEntries(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].ContainerID != es[j].ContainerID {
			return es[i].ContainerID < es[j].ContainerID
		}
		return es[i].InstanceID < es[j].InstanceID
	})
}
