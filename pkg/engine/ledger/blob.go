package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/storage"
)

// document is the blob layout: one JSON document per container.
type document struct {
	ContainerID string  `json:"container_id"`
	Entries     []Entry `json:"entries"`
}

// BlobBackend stores each container as a JSON document on a BlobStore.
// Container ids are hex encoded in keys so any id is a valid object name.
type BlobBackend struct {
	store  storage.BlobStore
	prefix string
}

// NewBlobBackend stores documents under prefix, "ledger" when empty.
func NewBlobBackend(store storage.BlobStore, prefix string) *BlobBackend {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "ledger"
	}
	return &BlobBackend{store: store, prefix: prefix}
}

func (b *BlobBackend) key(containerID string) string {
	return path.Join(b.prefix, hex.EncodeToString([]byte(containerID))+".json")
}

func (b *BlobBackend) read(ctx context.Context, key string) (document, error) {
	var doc document
	data, err := b.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return doc, nil
}

func (b *BlobBackend) keys(ctx context.Context) ([]string, error) {
	keys, err := b.store.List(ctx, b.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger documents: %w", err)
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			out = append(out, k)
		}
	}
	return out, nil
}

func (b *BlobBackend) Load(ctx context.Context, containerID string) ([]Entry, error) {
	if containerID != "" {
		doc, err := b.read(ctx, b.key(containerID))
		return doc.Entries, err
	}

	keys, err := b.keys(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, k := range keys {
		doc, err := b.read(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Entries...)
	}
	sortEntries(out)
	return out, nil
}

// Put is a read-modify-write of the container document; object stores have
// no append.
func (b *BlobBackend) Put(ctx context.Context, containerID string, entries []Entry) error {
	key := b.key(containerID)
	doc, err := b.read(ctx, key)
	if err != nil {
		return err
	}

	merged := make(map[string]Entry, len(doc.Entries)+len(entries))
	for _, e := range doc.Entries {
		merged[e.InstanceID] = e
	}
	for _, e := range entries {
		merged[e.InstanceID] = e
	}

	doc.ContainerID = containerID
	doc.Entries = sortedEntries(merged)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger document: %w", err)
	}
	return b.store.Put(ctx, key, data)
}

func (b *BlobBackend) Delete(ctx context.Context, containerID string) error {
	keys := []string{b.key(containerID)}
	if containerID == "" {
		var err error
		if keys, err = b.keys(ctx); err != nil {
			return err
		}
	}
	for _, k := range keys {
		if err := b.store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return nil
}

func (b *BlobBackend) Close() error { return nil }
