// Package ban provides origin-based ban management backed by Redis. Bans are
// permanent until explicitly lifted and carry a human-readable reason:
//
//	Key:   bans (HASH)
//	Field: <origin>
//	Value: <reason>
package ban

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Key is the Redis hash holding all ban records.
const Key = "bans"

// Record is one ban entry: the banned origin and why it was banned.
type Record struct {
	Origin string
	Reason string
}

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned checks whether an origin is banned. Returns (banned, reason, error).
// Redis errors are returned so callers can decide how to handle them; the
// relay's policy is fail-open so a Redis outage does not lock everyone out.
func (s *Store) IsBanned(ctx context.Context, origin string) (bool, string, error) {
	reason, err := s.client.HGet(ctx, Key, origin).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("ban: check %s: %w", origin, err)
	}
	return true, reason, nil
}

// Ban records a ban for an origin. Re-banning an already banned origin
// overwrites the reason.
func (s *Store) Ban(ctx context.Context, origin, reason string) error {
	if err := s.client.HSet(ctx, Key, origin, reason).Err(); err != nil {
		return fmt.Errorf("ban: set %s: %w", origin, err)
	}
	return nil
}

// Unban lifts the ban on an origin. Unbanning a never-banned origin is a
// no-op.
func (s *Store) Unban(ctx context.Context, origin string) error {
	if err := s.client.HDel(ctx, Key, origin).Err(); err != nil {
		return fmt.Errorf("ban: del %s: %w", origin, err)
	}
	return nil
}

// List returns all current ban records, for the moderation panel.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	all, err := s.client.HGetAll(ctx, Key).Result()
	if err != nil {
		return nil, fmt.Errorf("ban: list: %w", err)
	}
	records := make([]Record, 0, len(all))
	for origin, reason := range all {
		records = append(records, Record{Origin: origin, Reason: reason})
	}
	return records, nil
}
