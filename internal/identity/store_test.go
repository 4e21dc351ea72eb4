package identity

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newRedisTestStore returns a RedisStore on test DB 15, or skips when no
// Redis is reachable on localhost:6379.
func newRedisTestStore(t *testing.T) (*RedisStore, context.Context) {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return NewRedisStore(client), ctx
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, ctx := newRedisTestStore(t)

	_, found, err := store.Get(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no identity before save")
	}

	id := Identity{Username: "User1234", Tag: "AB12CD34", Avatar: "teal"}
	if err := store.Save(ctx, "10.0.0.1", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := store.Get(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected identity after save")
	}
	if got != id {
		t.Errorf("expected %+v, got %+v", id, got)
	}
}

func TestRedisStoreClaimTag(t *testing.T) {
	store, ctx := newRedisTestStore(t)

	claimed, err := store.ClaimTag(ctx, "AB12CD34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Error("first claim must succeed")
	}

	claimed, err = store.ClaimTag(ctx, "AB12CD34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("second claim of the same tag must fail")
	}
}

func TestRedisStoreUsernameIndex(t *testing.T) {
	store, ctx := newRedisTestStore(t)

	if err := store.Save(ctx, "10.0.0.1", Identity{Username: "User1234", Tag: "AAAA1111"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	origin, found, err := store.OriginForUsername(ctx, "User1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || origin != "10.0.0.1" {
		t.Errorf("expected origin 10.0.0.1, got (%q, %v)", origin, found)
	}

	// The index keeps the most recent writer for a colliding username.
	if err := store.Save(ctx, "10.0.0.2", Identity{Username: "User1234", Tag: "BBBB2222"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	origin, _, err = store.OriginForUsername(ctx, "User1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if origin != "10.0.0.2" {
		t.Errorf("expected origin 10.0.0.2, got %q", origin)
	}

	if _, found, _ := store.OriginForUsername(ctx, "nobody"); found {
		t.Error("expected no origin for unknown username")
	}
}
