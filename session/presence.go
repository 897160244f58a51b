package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/dictation/redis"
)

// Presence describes a live session for cluster-wide diagnostics.
type Presence struct {
	SessionID   string    `json:"session_id"`
	UserID      int64     `json:"user_id"`
	EncounterID int64     `json:"encounter_id"`
	StartedAt   time.Time `json:"started_at"`
	Instance    string    `json:"instance"`
}

// Directory is a shared view of live sessions across instances.
type Directory interface {
	Announce(ctx context.Context, p Presence) error
	Withdraw(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]Presence, error)
}

// DefaultPresenceTTL bounds how long an entry survives a crashed instance.
const DefaultPresenceTTL = 10 * time.Minute

// RedisDirectory stores presence entries as JSON keys with a TTL plus one
// index set of session ids.
type RedisDirectory struct {
	client  *redis.Client
	entries *redis.JSONStore[Presence]
	index   string
	ttl     time.Duration
}

// NewRedisDirectory creates a directory under prefix (e.g. "dictation:presence").
func NewRedisDirectory(client *redis.Client, prefix string, ttl time.Duration) *RedisDirectory {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisDirectory{
		client:  client,
		entries: redis.NewJSONStore[Presence](client, prefix),
		index:   prefix + ":index",
		ttl:     ttl,
	}
}

// Announce records p.
func (d *RedisDirectory) Announce(ctx context.Context, p Presence) error {
	if err := d.entries.Put(ctx, p.SessionID, p, d.ttl); err != nil {
		return err
	}
	if err := d.client.SAdd(ctx, d.index, p.SessionID); err != nil {
		return fmt.Errorf("presence index add: %w", err)
	}
	return nil
}

// Withdraw removes a session's entry.
func (d *RedisDirectory) Withdraw(ctx context.Context, sessionID string) error {
	if err := d.entries.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := d.client.SRem(ctx, d.index, sessionID); err != nil {
		return fmt.Errorf("presence index remove: %w", err)
	}
	return nil
}

// List returns live entries sorted by session id. Index members whose entry
// expired are pruned.
func (d *RedisDirectory) List(ctx context.Context) ([]Presence, error) {
	ids, err := d.client.SMembers(ctx, d.index)
	if err != nil {
		return nil, fmt.Errorf("presence index list: %w", err)
	}
	live, expired, err := d.entries.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		members := make([]interface{}, len(expired))
		for i, id := range expired {
			members[i] = id
		}
		_ = d.client.SRem(ctx, d.index, members...)
	}
	out := make([]Presence, 0, len(live))
	for _, p := range live {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
