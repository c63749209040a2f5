package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps one hash per container (field = instance id, value =
// JSON entry) and a set indexing the container ids.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend uses keys under prefix, "gridspawn:ledger" when empty.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "gridspawn:ledger"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// NewRedisBackendFromURL parses a redis:// or rediss:// URL.
func NewRedisBackendFromURL(rawURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisBackend(redis.NewClient(opts), ""), nil
}

func (b *RedisBackend) indexKey() string { return b.prefix + ":containers" }

func (b *RedisBackend) containerKey(id string) string { return b.prefix + ":c:" + id }

func (b *RedisBackend) containers(ctx context.Context, containerID string) ([]string, error) {
	if containerID != "" {
		return []string{containerID}, nil
	}
	ids, err := b.client.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger containers: %w", err)
	}
	return ids, nil
}

func (b *RedisBackend) Load(ctx context.Context, containerID string) ([]Entry, error) {
	ids, err := b.containers(ctx, containerID)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, id := range ids {
		fields, err := b.client.HGetAll(ctx, b.containerKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger container %q: %w", id, err)
		}
		for instance, raw := range fields {
			var e Entry
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				return nil, fmt.Errorf("failed to decode %s/%s: %w", id, instance, err)
			}
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (b *RedisBackend) Put(ctx context.Context, containerID string, entries []Entry) error {
	values := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", containerID, e.InstanceID, err)
		}
		values = append(values, e.InstanceID, string(data))
	}
	if len(values) == 0 {
		return nil
	}

	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, b.containerKey(containerID), values...)
		p.SAdd(ctx, b.indexKey(), containerID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write ledger container %q: %w", containerID, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, containerID string) error {
	ids, err := b.containers(ctx, containerID)
	if err != nil || len(ids) == 0 {
		return err
	}

	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Del(ctx, b.containerKey(id))
			p.SRem(ctx, b.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
