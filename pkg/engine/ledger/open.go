package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/storage"
)

// OpenOptions carries what the cloud backends need to connect.
type OpenOptions struct {
	AWS storage.AWSOptions
	// CreateTable makes dynamodb:// create its table when missing.
	CreateTable bool
}

// Open builds a backend from a URL:
//
//	memory://                 process memory
//	file:///var/lib/gridspawn JSON documents in a directory (also a bare path)
//	s3://bucket/prefix        JSON documents in S3
//	configmap://ns/name       JSON documents in a Kubernetes ConfigMap
//	dynamodb://table          one DynamoDB item per entry
//	redis://host:6379/0       one Redis hash per container
//	sqlite:///path/ledger.db  one SQLite row per entry
func Open(ctx context.Context, rawURL string, o OpenOptions) (Backend, error) {
	if rawURL == "" {
		return NewMemoryBackend(), nil
	}
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		scheme = "file"
	}

	switch scheme {
	case "memory", "mem":
		return NewMemoryBackend(), nil

	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("sqlite ledger needs a path: %s", rawURL)
		}
		return NewSQLiteBackend(rest)

	case "redis", "rediss":
		return NewRedisBackendFromURL(rawURL)

	case "dynamodb":
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger url %q: %w", rawURL, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("ledger url %q has no table", rawURL)
		}
		cfg, err := storage.LoadAWSConfig(ctx, o.AWS)
		if err != nil {
			return nil, err
		}
		b := NewDynamoBackend(cfg, u.Host)
		if o.CreateTable {
			if err := b.CreateTable(ctx); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	store, prefix, err := storage.Open(ctx, rawURL, o.AWS)
	if errors.Is(err, storage.ErrUnsupportedScheme) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, scheme)
	}
	if err != nil {
		return nil, err
	}
	return NewBlobBackend(store, prefix), nil
}
