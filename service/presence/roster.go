package presence

import (
	"sort"
	"sync"
)

// Roster maintains the online-user set for one session, excluding the
// local identity. The server ships a full authoritative member list
// with every presence event; the roster is always re-derived from
// that list and never patched incrementally, so a missed intermediate
// event can never leave it drifted.
type Roster struct {
	mu     sync.RWMutex
	self   string
	online map[string]struct{}

	// onNotice receives the human-readable join/leave message from
	// membership events, for appending to the shared timeline.
	onNotice func(message string)
}

func NewRoster(self string, onNotice func(message string)) *Roster {
	if onNotice == nil {
		onNotice = func(string) {}
	}
	return &Roster{
		self:     self,
		online:   make(map[string]struct{}),
		onNotice: onNotice,
	}
}

// ApplySnapshot replaces the set with members minus self. Idempotent.
func (r *Roster) ApplySnapshot(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceLocked(members)
}

// ApplyMembership handles a join/leave event: same wholesale
// replacement as a snapshot, plus the event's message goes to the
// timeline as a notification.
func (r *Roster) ApplyMembership(message string, members []string) {
	r.mu.Lock()
	r.replaceLocked(members)
	r.mu.Unlock()

	if message != "" {
		r.onNotice(message)
	}
}

func (r *Roster) replaceLocked(members []string) {
	next := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m == "" || m == r.self {
			continue
		}
		next[m] = struct{}{}
	}
	r.online = next
}

// Online returns the sorted online list.
func (r *Roster) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.online))
	for m := range r.online {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether identity is currently online.
func (r *Roster) Contains(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.online[identity]
	return ok
}

// Count returns the online-user count.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}
