package ws

import (
	"sync"
	"testing"
	"time"
)

func TestTouchPingConcurrentWithReads(t *testing.T) {
	c := &Connection{ID: "s1"}

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.TouchPing()
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = c.LastPing()
			}
		}()
	}
	wg.Wait()

	if time.Since(c.LastPing()) > time.Minute {
		t.Errorf("expected a recent activity timestamp, got %v", c.LastPing())
	}
}

func TestTouchPingAdvances(t *testing.T) {
	c := &Connection{ID: "s1"}

	c.TouchPing()
	first := c.LastPing()
	time.Sleep(time.Millisecond)
	c.TouchPing()

	if !c.LastPing().After(first) {
		t.Errorf("expected timestamp to advance: %v then %v", first, c.LastPing())
	}
}
