package timeline

import (
	"testing"
	"time"
)

type captureSink struct {
	titles []string
	bodies []string
}

func (c *captureSink) Notify(title, body string) {
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, body)
}

func TestOptimisticSendThenResolve(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tl := New(Config{Clock: func() time.Time { return now }})

	pid := tl.BeginSend("hi", "alice")
	if tl.Len() != 1 {
		t.Fatalf("expected 1 entry after BeginSend, got %d", tl.Len())
	}
	e := tl.Entries()[0]
	if e.Status != StatusSending || e.ID != pid || e.Sender != "alice" || e.Body != "hi" {
		t.Fatalf("unexpected pending entry: %+v", e)
	}

	now = now.Add(2 * time.Second)
	if !tl.ResolveSend(pid, "42") {
		t.Fatal("ResolveSend did not find the pending entry")
	}
	if tl.Len() != 1 {
		t.Fatalf("resolve must rewrite in place, got %d entries", tl.Len())
	}
	e = tl.Entries()[0]
	if e.ID != "42" || e.Status != StatusDelivered {
		t.Fatalf("expected id=42 delivered, got %+v", e)
	}
	if !e.At.Equal(now) {
		t.Fatalf("timestamp must reflect resolution time, got %v want %v", e.At, now)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	tl := New(Config{})

	if tl.ResolveSend("p-999", "7") {
		t.Fatal("resolve of a never-issued id must be a no-op")
	}

	pid := tl.BeginSend("hello", "alice")
	if !tl.ResolveSend(pid, "7") {
		t.Fatal("first resolve failed")
	}
	if tl.ResolveSend(pid, "8") {
		t.Fatal("second resolve must be a no-op")
	}
	e := tl.Entries()[0]
	if e.ID != "7" {
		t.Fatalf("duplicate resolve must not rewrite the id, got %s", e.ID)
	}
}

func TestResolveAffectsOnlyMatchingEntry(t *testing.T) {
	tl := New(Config{})

	p1 := tl.BeginSend("one", "alice")
	p2 := tl.BeginSend("two", "alice")

	tl.ResolveSend(p2, "50")

	entries := tl.Entries()
	if entries[0].ID != p1 || entries[0].Status != StatusSending {
		t.Fatalf("first entry must stay pending: %+v", entries[0])
	}
	if entries[1].ID != "50" || entries[1].Status != StatusDelivered {
		t.Fatalf("second entry must be delivered: %+v", entries[1])
	}
}

func TestAppendOrderIsPreserved(t *testing.T) {
	tl := New(Config{})

	tl.AppendReceived("1", "bob", "first", time.Time{})
	pid := tl.BeginSend("second", "alice")
	tl.AppendNotification("carol joined the chat")
	tl.AppendPrivate("bob", "alice", "psst", false)
	tl.ResolveSend(pid, "99")

	entries := tl.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantBodies := []string{"first", "second", "carol joined the chat", "psst"}
	for i, want := range wantBodies {
		if entries[i].Body != want {
			t.Fatalf("entry %d out of order: got %q want %q", i, entries[i].Body, want)
		}
	}
}

func TestPrivateDisplaySender(t *testing.T) {
	sink := &captureSink{}
	tl := New(Config{Sink: sink})

	tl.AppendPrivate("alice", "bob", "hey", true)
	tl.AppendPrivate("bob", "alice", "yo", false)

	entries := tl.Entries()
	if entries[0].Sender != "To bob" {
		t.Fatalf("self-sent private must display 'To bob', got %q", entries[0].Sender)
	}
	if entries[1].Sender != "bob" {
		t.Fatalf("inbound private must display the remote sender, got %q", entries[1].Sender)
	}
	if len(sink.titles) != 2 {
		t.Fatalf("every private arrival must notify, got %d", len(sink.titles))
	}
}

func TestBroadcastDedup(t *testing.T) {
	tl := New(Config{})

	if !tl.AppendReceived("10", "bob", "hi", time.Time{}) {
		t.Fatal("first delivery must append")
	}
	if tl.AppendReceived("10", "bob", "hi", time.Time{}) {
		t.Fatal("redelivery of the same server id must be dropped")
	}
	if tl.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tl.Len())
	}
}

func TestDedupWindowEviction(t *testing.T) {
	tl := New(Config{DedupCap: 2})

	tl.AppendReceived("1", "bob", "a", time.Time{})
	tl.AppendReceived("2", "bob", "b", time.Time{})
	tl.AppendReceived("3", "bob", "c", time.Time{})

	// "1" has been evicted from the window; a very late redelivery
	// appends again. Documented cost of the bounded window.
	if !tl.AppendReceived("1", "bob", "a", time.Time{}) {
		t.Fatal("id outside the window should append")
	}
	if tl.AppendReceived("3", "bob", "c", time.Time{}) {
		t.Fatal("id inside the window must still dedup")
	}
}
