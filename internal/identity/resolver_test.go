package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memStore is an in-memory Store for resolver tests. Setting failing makes
// every call return an error, simulating a store outage.
type memStore struct {
	mu      sync.Mutex
	records map[string]Identity
	tags    map[string]struct{}
	byName  map[string]string
	failing bool
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]Identity),
		tags:    make(map[string]struct{}),
		byName:  make(map[string]string),
	}
}

var errStoreDown = errors.New("store down")

func (m *memStore) Get(_ context.Context, origin string) (Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return Identity{}, false, errStoreDown
	}
	id, ok := m.records[origin]
	return id, ok, nil
}

func (m *memStore) Save(_ context.Context, origin string, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	m.records[origin] = id
	m.byName[id.Username] = origin
	return nil
}

func (m *memStore) ClaimTag(_ context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false, errStoreDown
	}
	if _, taken := m.tags[tag]; taken {
		return false, nil
	}
	m.tags[tag] = struct{}{}
	return true, nil
}

func (m *memStore) OriginForUsername(_ context.Context, username string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", false, errStoreDown
	}
	origin, ok := m.byName[username]
	return origin, ok, nil
}

func TestResolveIsStable(t *testing.T) {
	r := NewResolver(newMemStore())
	ctx := context.Background()

	first := r.Resolve(ctx, "10.0.0.1")
	second := r.Resolve(ctx, "10.0.0.1")

	if first != second {
		t.Errorf("repeat resolve must return the same identity: %+v vs %+v", first, second)
	}
	if first.Tag == "" || first.Username == "" {
		t.Errorf("incomplete identity: %+v", first)
	}
	if first.Avatar != DefaultAvatar {
		t.Errorf("expected default avatar, got %q", first.Avatar)
	}
}

func TestResolveReadsStoredIdentity(t *testing.T) {
	store := newMemStore()
	stored := Identity{Username: "Returning", Tag: "AB12CD34", Avatar: "teal"}
	store.records["10.0.0.1"] = stored

	r := NewResolver(store)
	got := r.Resolve(context.Background(), "10.0.0.1")
	if got != stored {
		t.Errorf("expected stored identity %+v, got %+v", stored, got)
	}
}

func TestResolveDistinctTags(t *testing.T) {
	r := NewResolver(newMemStore())
	ctx := context.Background()

	seen := make(map[string]string)
	for i := 0; i < 200; i++ {
		origin := "10.0.0." + string(rune('a'+i%26)) + string(rune('a'+i/26))
		id := r.Resolve(ctx, origin)
		if prev, dup := seen[id.Tag]; dup {
			t.Fatalf("tag %q issued to both %s and %s", id.Tag, prev, origin)
		}
		seen[id.Tag] = origin
	}
}

func TestResolveSurvivesStoreOutage(t *testing.T) {
	store := newMemStore()
	store.failing = true
	r := NewResolver(store)
	ctx := context.Background()

	first := r.Resolve(ctx, "10.0.0.1")
	if first.Tag == "" {
		t.Fatalf("expected a generated identity, got %+v", first)
	}
	second := r.Resolve(ctx, "10.0.0.1")
	if first != second {
		t.Errorf("identity must stay stable while the store is down")
	}

	other := r.Resolve(ctx, "10.0.0.2")
	if other.Tag == first.Tag {
		t.Error("tags must stay unique in-run while the store is down")
	}
}

func TestUsePaletteAvatars(t *testing.T) {
	r := NewResolver(newMemStore())
	r.UsePalette = true

	id := r.Resolve(context.Background(), "10.0.0.1")
	found := false
	for _, p := range Palette {
		if id.Avatar == p {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("avatar %q not in palette", id.Avatar)
	}
}

func TestUpdateProfile(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	ctx := context.Background()

	original := r.Resolve(ctx, "10.0.0.1")

	updated := r.UpdateProfile(ctx, "10.0.0.1", "NewName", "crimson")
	if updated.Username != "NewName" || updated.Avatar != "crimson" {
		t.Errorf("unexpected identity after update: %+v", updated)
	}
	if updated.Tag != original.Tag {
		t.Error("tag must never change")
	}

	// Empty fields keep their prior value.
	kept := r.UpdateProfile(ctx, "10.0.0.1", "", "")
	if kept != updated {
		t.Errorf("empty update must be a no-op: %+v vs %+v", kept, updated)
	}

	// Whitespace-only usernames are rejected, not stored.
	kept = r.UpdateProfile(ctx, "10.0.0.1", "   ", "")
	if kept.Username != "NewName" {
		t.Errorf("expected username to survive a blank update, got %q", kept.Username)
	}

	// The store sees the update.
	if stored := store.records["10.0.0.1"]; stored.Username != "NewName" {
		t.Errorf("store not updated: %+v", stored)
	}
}

func TestFindOrigin(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)
	ctx := context.Background()

	id := r.Resolve(ctx, "10.0.0.1")

	origin, ok := r.FindOrigin(ctx, id.Username)
	if !ok || origin != "10.0.0.1" {
		t.Errorf("expected origin 10.0.0.1, got (%q, %v)", origin, ok)
	}

	// An identity known only to the store is still found via the index.
	store.byName["GhostUser"] = "10.0.0.99"
	origin, ok = r.FindOrigin(ctx, "GhostUser")
	if !ok || origin != "10.0.0.99" {
		t.Errorf("expected origin 10.0.0.99, got (%q, %v)", origin, ok)
	}

	if _, ok := r.FindOrigin(ctx, "nobody"); ok {
		t.Error("expected no origin for unknown username")
	}
}
