package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned by Open for URL schemes with no store.
var ErrUnsupportedScheme = errors.New("storage: unsupported url scheme")

// Open resolves a blob store URL and returns the store together with the
// key prefix the URL names:
//
//	memory://                   process memory
//	file:///var/lib/gridspawn   a directory (also a bare path)
//	s3://bucket/prefix          an S3 bucket
//	configmap://namespace/name  a Kubernetes ConfigMap
func Open(ctx context.Context, rawURL string, o AWSOptions) (BlobStore, string, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		if rawURL == "" {
			return nil, "", errors.New("storage url is empty")
		}
		return NewLocalStore(rawURL), "", nil
	}

	switch scheme {
	case "memory", "mem":
		return NewMemoryStore(), strings.Trim(rest, "/"), nil
	case "file":
		if rest == "" {
			return nil, "", fmt.Errorf("file url needs a directory: %s", rawURL)
		}
		return NewLocalStore(rest), "", nil
	case "s3", "configmap":
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid storage url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		what := "bucket"
		if scheme == "configmap" {
			what = "namespace"
		}
		return nil, "", fmt.Errorf("storage url %q has no %s", rawURL, what)
	}

	if scheme == "s3" {
		cfg, err := LoadAWSConfig(ctx, o)
		if err != nil {
			return nil, "", err
		}
		return NewS3Store(cfg, u.Host), strings.Trim(u.Path, "/"), nil
	}

	name := strings.Trim(u.Path, "/")
	if name == "" {
		return nil, "", fmt.Errorf("configmap url %q needs a name: configmap://namespace/name", rawURL)
	}
	client, err := NewKubeClient()
	if err != nil {
		return nil, "", err
	}
	return NewConfigMapStore(client, u.Host, name), "", nil
}
