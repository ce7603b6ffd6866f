package timeline

import (
	"sync"
	"time"

	"PClient/service/notify"
	"PClient/tools/ids"
)

// EntryKind classifies a timeline entry.
type EntryKind int

const (
	KindBroadcast EntryKind = iota
	KindPrivate
	KindNotification
)

// EntryStatus tracks delivery of an entry.
//
// Received entries arrived from another party and never transition.
// Sending/Delivered apply only to self-sent broadcast entries.
type EntryStatus int

const (
	StatusSending EntryStatus = iota
	StatusDelivered
	StatusReceived
)

func (s EntryStatus) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusDelivered:
		return "delivered"
	default:
		return "received"
	}
}

// LogEntry is one unit of the shared timeline. Sender holds the
// display label: for a self-sent private message that is
// "To <recipient>", not the local name.
type LogEntry struct {
	ID        string
	Kind      EntryKind
	Status    EntryStatus
	Sender    string
	Recipient string
	Body      string
	At        time.Time
}

// Config tunes a Timeline.
type Config struct {
	Sink     notify.Sink      // private-message interrupt target; nil => NopSink
	DedupCap int              // recent server ids remembered; <=0 => 128
	Clock    func() time.Time // injectable for tests; nil => time.Now
}

func (c *Config) norm() {
	if c.Sink == nil {
		c.Sink = notify.NopSink{}
	}
	if c.DedupCap <= 0 {
		c.DedupCap = 128
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Timeline is the append-only, status-tracked message log. Entries
// keep their position forever; only id/status/timestamp are rewritten
// in place, exactly once, when a send resolves.
type Timeline struct {
	mu      sync.RWMutex
	entries []LogEntry
	pending map[string]int // provisional id -> entry index

	// dedup window for inbound broadcast server ids; the wire
	// protocol is at-least-once, so redelivery is expected
	seen     map[string]struct{}
	seenFIFO []string

	conf Config
}

func New(conf Config) *Timeline {
	conf.norm()
	return &Timeline{
		pending: make(map[string]int),
		seen:    make(map[string]struct{}),
		conf:    conf,
	}
}

// AppendReceived appends a broadcast message that arrived from
// another party. Redeliveries of an already-seen server id are
// dropped. Returns false when the entry was a duplicate.
func (t *Timeline) AppendReceived(serverID, sender, text string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if serverID != "" {
		if _, dup := t.seen[serverID]; dup {
			return false
		}
		t.remember(serverID)
	}
	if at.IsZero() {
		at = t.conf.Clock()
	}
	t.entries = append(t.entries, LogEntry{
		ID:     serverID,
		Kind:   KindBroadcast,
		Status: StatusReceived,
		Sender: sender,
		Body:   text,
		At:     at,
	})
	return true
}

// AppendPrivate appends a private message. When fromSelf is set the
// entry is the local echo of an outgoing message and its display
// sender reads "To <recipient>". Every private arrival also fires the
// notification sink; the passive timeline line alone is easy to miss.
func (t *Timeline) AppendPrivate(sender, recipient, text string, fromSelf bool) {
	display := sender
	if fromSelf {
		display = "To " + recipient
	}

	t.mu.Lock()
	t.entries = append(t.entries, LogEntry{
		ID:        ids.Provisional(),
		Kind:      KindPrivate,
		Status:    StatusReceived,
		Sender:    display,
		Recipient: recipient,
		Body:      text,
		At:        t.conf.Clock(),
	})
	t.mu.Unlock()

	t.conf.Sink.Notify("New private message", "from "+sender)
}

// AppendNotification appends a free-text system line (joins, leaves).
func (t *Timeline) AppendNotification(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, LogEntry{
		ID:     ids.Provisional(),
		Kind:   KindNotification,
		Status: StatusReceived,
		Body:   text,
		At:     t.conf.Clock(),
	})
}

// BeginSend optimistically appends a self-sent broadcast entry with a
// fresh provisional id and Sending status, before any server
// confirmation. Returns the provisional id for the eventual
// ResolveSend.
func (t *Timeline) BeginSend(text, localIdentity string) string {
	pid := ids.Provisional()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[pid] = len(t.entries)
	t.entries = append(t.entries, LogEntry{
		ID:     pid,
		Kind:   KindBroadcast,
		Status: StatusSending,
		Sender: localIdentity,
		Body:   text,
		At:     t.conf.Clock(),
	})
	return pid
}

// ResolveSend rewrites the single pending entry matching
// provisionalID: id becomes the server id, status becomes Delivered
// and the timestamp is refreshed to the resolution time. Unknown or
// already-resolved ids are a no-op — acks are at-least-once and late
// duplicates are normal. Reports whether an entry was resolved.
func (t *Timeline) ResolveSend(provisionalID, serverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.pending[provisionalID]
	if !ok {
		return false
	}
	delete(t.pending, provisionalID)

	e := &t.entries[idx]
	e.ID = serverID
	e.Status = StatusDelivered
	e.At = t.conf.Clock()
	if serverID != "" {
		t.remember(serverID)
	}
	return true
}

// Entries returns a snapshot copy in append order.
func (t *Timeline) Entries() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]LogEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// remember records a server id in the dedup window, evicting the
// oldest once the window is full. Caller holds the lock.
func (t *Timeline) remember(serverID string) {
	if _, ok := t.seen[serverID]; ok {
		return
	}
	t.seen[serverID] = struct{}{}
	t.seenFIFO = append(t.seenFIFO, serverID)
	if len(t.seenFIFO) > t.conf.DedupCap {
		old := t.seenFIFO[0]
		t.seenFIFO = t.seenFIFO[1:]
		delete(t.seen, old)
	}
}
