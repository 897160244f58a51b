package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// JSONStore keeps values of type V as JSON strings under "<prefix>:<id>".
type JSONStore[V any] struct {
	client *Client
	prefix string
}

// NewJSONStore creates a store. An empty prefix uses ids as keys.
func NewJSONStore[V any](client *Client, prefix string) *JSONStore[V] {
	return &JSONStore[V]{client: client, prefix: prefix}
}

// Key returns the Redis key for id.
func (s *JSONStore[V]) Key(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + ":" + id
}

// Put stores v under id for ttl.
func (s *JSONStore[V]) Put(ctx context.Context, id string, v V, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.Key(id), err)
	}
	if err := s.client.Set(ctx, s.Key(id), raw, ttl); err != nil {
		return fmt.Errorf("put %s: %w", s.Key(id), err)
	}
	return nil
}

// Get loads the value under id. ok is false when the key is absent.
func (s *JSONStore[V]) Get(ctx context.Context, id string) (v V, ok bool, err error) {
	raw, err := s.client.Get(ctx, s.Key(id))
	if errors.Is(err, goredis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("get %s: %w", s.Key(id), err)
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", s.Key(id), err)
	}
	return v, true, nil
}

// GetMany loads ids in one round trip. The result maps id to value; absent
// ids are listed in missing.
func (s *JSONStore[V]) GetMany(ctx context.Context, ids []string) (found map[string]V, missing []string, err error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.Key(id)
	}
	vals, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, nil, fmt.Errorf("mget %s: %w", s.prefix, err)
	}
	found = make(map[string]V, len(ids))
	for i, raw := range vals {
		str, isStr := raw.(string)
		if !isStr {
			missing = append(missing, ids[i])
			continue
		}
		var v V
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		found[ids[i]] = v
	}
	return found, missing, nil
}

// Delete removes the value under id.
func (s *JSONStore[V]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.Key(id)); err != nil {
		return fmt.Errorf("delete %s: %w", s.Key(id), err)
	}
	return nil
}
