package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/gridspawn/pkg/grid"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(container, instance string) Entry {
	return Entry{
		ContainerID: container,
		InstanceID:  instance,
		TemplateID:  "gold",
		ItemKind:    "coin",
		Quantity:    1,
		Position:    grid.Position{X: 1, Y: 2},
		RecordedAt:  fixedNow,
	}
}

func TestLedger_ShouldSpawn(t *testing.T) {
	l := New(nil)

	assert.True(t, l.ShouldSpawn("chest", "gold#1", true))
	l.Record(entry("chest", "gold#1"))

	assert.False(t, l.ShouldSpawn("chest", "gold#1", true))
	assert.True(t, l.ShouldSpawn("chest", "gold#1", false), "non-unique instances always spawn")
	assert.True(t, l.ShouldSpawn("other", "gold#1", true), "containers are independent")
	assert.True(t, l.Has("chest", "gold#1"))
	assert.Equal(t, 1, l.Count("chest", "gold"))
}

func TestLedger_RecordStampsTime(t *testing.T) {
	l := New(nil, WithClock(func() time.Time { return fixedNow }))
	e := entry("chest", "gold#1")
	e.RecordedAt = time.Time{}
	l.Record(e)

	got := l.Entries("chest")
	require.Len(t, got, 1)
	assert.Equal(t, fixedNow, got[0].RecordedAt)
}

func TestLedger_SaveBatchesPerContainer(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	l := New(b)

	l.Record(entry("a", "gold#1"))
	l.Record(entry("a", "gold#2"))
	l.Record(entry("b", "gold#1"))
	assert.Equal(t, 3, l.Pending())

	require.NoError(t, l.Save(ctx))
	assert.Zero(t, l.Pending())
	assert.Equal(t, 2, b.Puts)

	stored, err := b.Load(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.NoError(t, l.Save(ctx), "saving an empty journal is a no-op")
	assert.Equal(t, 2, b.Puts)
}

func TestLedger_SaveFailureKeepsJournal(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	b.PutErr = errors.New("disk full")
	l := New(b)

	l.Record(entry("a", "gold#1"))
	err := l.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, b.PutErr)
	assert.Equal(t, 1, l.Pending())

	b.PutErr = nil
	require.NoError(t, l.Save(ctx))
	assert.Zero(t, l.Pending())
}

func TestLedger_ResetIsPersistedInOrder(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	l := New(b)

	l.Record(entry("a", "gold#1"))
	l.Record(entry("b", "gold#1"))
	require.NoError(t, l.Save(ctx))

	l.ResetContainer("a")
	l.Record(entry("a", "gold#2"))
	require.NoError(t, l.Save(ctx))

	stored, err := b.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "gold#2", stored[0].InstanceID)
	assert.Equal(t, "b", stored[1].ContainerID)

	l.ResetAll()
	assert.Empty(t, l.Containers())
	require.NoError(t, l.Save(ctx))
	stored, err = b.Load(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLedger_LoadReplaysUnsavedOperations(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Put(ctx, "a", []Entry{entry("a", "gold#1")}))
	require.NoError(t, b.Put(ctx, "b", []Entry{entry("b", "gold#1")}))

	l := New(b)
	l.Record(entry("c", "gold#1"))
	l.ResetContainer("b")
	require.NoError(t, l.Load(ctx))

	assert.Equal(t, []string{"a", "c"}, l.Containers())
	assert.Equal(t, 2, l.Pending())
}

func TestLedger_LoadError(t *testing.T) {
	b := NewMemoryBackend()
	b.LoadErr = errors.New("unreachable")
	l := New(b)
	assert.ErrorIs(t, l.Load(context.Background()), b.LoadErr)
}

// Reopening a container with a fresh ledger on the same backend must see
// everything the previous session saved.
func TestLedger_CrossSession(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/ledger.db"

	b1, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	first := New(b1)
	first.Record(entry("chest", "gold#1"))
	require.NoError(t, first.Save(ctx))
	require.NoError(t, first.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	second := New(b2)
	defer second.Close()
	require.NoError(t, second.Load(ctx))
	assert.False(t, second.ShouldSpawn("chest", "gold#1", true))
}
