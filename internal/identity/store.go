package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// RecordPrefix is the Redis key prefix for per-origin identity hashes.
	RecordPrefix = "identity:"

	// TagSetKey is the Redis set holding every tag ever issued, used for
	// collision detection across process restarts.
	TagSetKey = "identity_tags"

	// UsernameIndexKey maps usernames to the origin that last held them.
	// Usernames are not unique; the index keeps the most recent writer,
	// which is the documented first-match behavior for moderation lookups.
	UsernameIndexKey = "identity_byname"
)

// Store is the persistence interface the Resolver writes identities through.
// The Redis implementation is RedisStore; tests substitute an in-memory fake.
type Store interface {
	// Get returns the identity for an origin, and whether one exists.
	Get(ctx context.Context, origin string) (Identity, bool, error)
	// Save upserts the identity for an origin and updates the username index.
	Save(ctx context.Context, origin string, id Identity) error
	// ClaimTag marks a tag as issued. Returns false if it was already taken.
	ClaimTag(ctx context.Context, tag string) (bool, error)
	// OriginForUsername returns the origin last known for a username.
	OriginForUsername(ctx context.Context, username string) (string, bool, error)
}

// RedisStore persists identity records in Redis:
//
//	identity:<origin>  HASH  {username, tag, avatar}
//	identity_tags      SET   all issued tags
//	identity_byname    HASH  username -> origin
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore using the provided Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves the identity hash for an origin. A missing key is reported as
// not-found, not an error.
func (s *RedisStore) Get(ctx context.Context, origin string) (Identity, bool, error) {
	var id Identity
	err := s.client.HGetAll(ctx, RecordPrefix+origin).Scan(&id)
	if err != nil {
		return Identity{}, false, fmt.Errorf("identity: get %s: %w", origin, err)
	}
	if id.Tag == "" {
		return Identity{}, false, nil
	}
	return id, true, nil
}

// Save writes the identity hash and the username index entry in one pipeline.
func (s *RedisStore) Save(ctx context.Context, origin string, id Identity) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, RecordPrefix+origin,
		"username", id.Username,
		"tag", id.Tag,
		"avatar", id.Avatar,
	)
	pipe.HSet(ctx, UsernameIndexKey, id.Username, origin)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("identity: save %s: %w", origin, err)
	}
	return nil
}

// ClaimTag adds the tag to the issued-tags set. SADD returns 0 when the tag
// was already present, which signals a collision to the caller.
func (s *RedisStore) ClaimTag(ctx context.Context, tag string) (bool, error) {
	added, err := s.client.SAdd(ctx, TagSetKey, tag).Result()
	if err != nil {
		return false, fmt.Errorf("identity: claim tag: %w", err)
	}
	return added == 1, nil
}

// OriginForUsername resolves a username to its last known origin via the
// username index.
func (s *RedisStore) OriginForUsername(ctx context.Context, username string) (string, bool, error) {
	origin, err := s.client.HGet(ctx, UsernameIndexKey, username).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("identity: username lookup: %w", err)
	}
	return origin, true, nil
}
