// Package storage provides the blob stores the ledger persists into.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Delete when a key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
