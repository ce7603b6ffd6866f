package typing

import (
	"sync"
	"testing"
	"time"
)

func TestExpiresAfterQuietPeriod(t *testing.T) {
	i := NewIndicator(50 * time.Millisecond)

	i.Set("bob")
	if i.Current() != "bob" {
		t.Fatalf("expected bob, got %q", i.Current())
	}

	time.Sleep(120 * time.Millisecond)
	if i.Current() != "" {
		t.Fatalf("expected expiry, got %q", i.Current())
	}
}

func TestRefreshReplacesAndRestarts(t *testing.T) {
	i := NewIndicator(100 * time.Millisecond)

	i.Set("bob")
	time.Sleep(60 * time.Millisecond)
	i.Set("carol") // supersedes bob and restarts the clock

	time.Sleep(60 * time.Millisecond)
	// bob's original expiry has passed; carol's has not
	if i.Current() != "carol" {
		t.Fatalf("stale expiry cleared the newer writer, got %q", i.Current())
	}

	time.Sleep(100 * time.Millisecond)
	if i.Current() != "" {
		t.Fatalf("expected expiry, got %q", i.Current())
	}
}

func TestStopCancelsPendingExpiry(t *testing.T) {
	fired := false
	i := NewIndicator(30 * time.Millisecond)
	i.OnChange = func(who string) {
		if who == "" {
			fired = true
		}
	}

	i.Set("bob")
	i.Stop()
	time.Sleep(80 * time.Millisecond)

	if fired {
		t.Fatal("expiry callback ran after Stop")
	}
	if i.Current() != "" {
		t.Fatalf("stopped indicator must be empty, got %q", i.Current())
	}

	i.Set("carol")
	if i.Current() != "" {
		t.Fatal("Set after Stop must be inert")
	}
}

func TestOnChangeObservesTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	i := NewIndicator(40 * time.Millisecond)
	i.OnChange = func(who string) {
		mu.Lock()
		seen = append(seen, who)
		mu.Unlock()
	}

	i.Set("bob")
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "bob" || seen[1] != "" {
		t.Fatalf("unexpected transitions: %v", seen)
	}
}
