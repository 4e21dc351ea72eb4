package ban

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore returns a Store on test DB 15, or skips when no Redis is
// reachable on localhost:6379.
func newTestStore(t *testing.T) (*Store, context.Context) {
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
	return NewStore(client), ctx
}

func TestBanAndCheck(t *testing.T) {
	store, ctx := newTestStore(t)

	banned, _, err := store.IsBanned(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned {
		t.Fatal("expected origin to start unbanned")
	}

	if err := store.Ban(ctx, "10.0.0.1", "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	banned, reason, err := store.IsBanned(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !banned {
		t.Fatal("expected origin to be banned")
	}
	if reason != "spam" {
		t.Errorf("expected reason %q, got %q", "spam", reason)
	}
}

func TestRebanOverwritesReason(t *testing.T) {
	store, ctx := newTestStore(t)

	if err := store.Ban(ctx, "10.0.0.1", "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Ban(ctx, "10.0.0.1", "harassment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, reason, err := store.IsBanned(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "harassment" {
		t.Errorf("expected overwritten reason %q, got %q", "harassment", reason)
	}
}

func TestUnban(t *testing.T) {
	store, ctx := newTestStore(t)

	if err := store.Ban(ctx, "10.0.0.1", "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Unban(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	banned, _, err := store.IsBanned(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if banned {
		t.Error("expected ban to be lifted")
	}

	// Unbanning a never-banned origin is a no-op.
	if err := store.Unban(ctx, "10.0.0.99"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestList(t *testing.T) {
	store, ctx := newTestStore(t)

	if err := store.Ban(ctx, "10.0.0.1", "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Ban(ctx, "10.0.0.2", "harassment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	byOrigin := make(map[string]string, len(records))
	for _, r := range records {
		byOrigin[r.Origin] = r.Reason
	}
	if byOrigin["10.0.0.1"] != "spam" || byOrigin["10.0.0.2"] != "harassment" {
		t.Errorf("unexpected records: %+v", records)
	}
}
