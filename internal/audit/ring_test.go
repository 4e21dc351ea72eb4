package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestRingRecentInOrder(t *testing.T) {
	r := NewRing(5)
	ctx := context.Background()

	r.Record(ctx, Entry{Actor: "a", Action: ActionConnected})
	r.Record(ctx, Entry{Actor: "b", Action: ActionConnected})
	r.Record(ctx, Entry{Actor: "a", Action: ActionDisconnected})

	entries := r.Recent()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Actor != "a" || entries[0].Action != ActionConnected {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[2].Action != ActionDisconnected {
		t.Errorf("unexpected last entry: %+v", entries[2])
	}
}

func TestRingWraparound(t *testing.T) {
	r := NewRing(5)
	ctx := context.Background()

	// Record 7 entries; the ring holds only 5.
	for i := 1; i <= 7; i++ {
		r.Record(ctx, Entry{Detail: fmt.Sprintf("event-%d", i)})
	}

	entries := r.Recent()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	// Entries 3 through 7 survive, in order.
	for i, entry := range entries {
		expected := fmt.Sprintf("event-%d", i+3)
		if entry.Detail != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, entry.Detail)
		}
	}
}

func TestRingEmpty(t *testing.T) {
	r := NewRing(5)

	entries := r.Recent()
	if entries == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	r := NewRing(0)
	ctx := context.Background()

	for i := 0; i < DefaultRecent+10; i++ {
		r.Record(ctx, Entry{Detail: fmt.Sprintf("event-%d", i)})
	}
	if got := len(r.Recent()); got != DefaultRecent {
		t.Errorf("expected %d retained entries, got %d", DefaultRecent, got)
	}
}

func TestRingConcurrentAccess(t *testing.T) {
	r := NewRing(5)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := 0; m < 20; m++ {
				r.Record(ctx, Entry{Detail: fmt.Sprintf("g%d-m%d", id, m)})
				_ = r.Recent()
			}
		}(g)
	}
	wg.Wait()

	if got := len(r.Recent()); got != 5 {
		t.Fatalf("expected 5 entries after concurrent writes, got %d", got)
	}
}

func TestFanout(t *testing.T) {
	a := NewRing(5)
	b := NewRing(5)
	sink := Fanout{a, b, NopSink{}}

	sink.Record(context.Background(), Entry{Actor: "x", Action: ActionBan})

	if len(a.Recent()) != 1 || len(b.Recent()) != 1 {
		t.Errorf("expected the entry in both rings: %d, %d", len(a.Recent()), len(b.Recent()))
	}
}
