package typing

import (
	"sync"
	"time"
)

// DefaultQuiet is how long a typing notice stays fresh before the
// indicator self-clears.
const DefaultQuiet = 3 * time.Second

// Indicator tracks "who is currently typing". It is a single slot
// with last-writer-wins semantics: a new notice fully replaces the
// prior identity and restarts the expiry timer. The pending timer is
// always cancelled before being replaced so two expiries never race.
type Indicator struct {
	mu    sync.Mutex
	who   string
	gen   uint64 // bumped on every Set/Clear/Stop; stale fires no-op
	timer *time.Timer
	quiet time.Duration

	// OnChange, when set, observes every transition of the slot
	// (identity or empty string on expiry). Called outside the lock.
	OnChange func(identity string)

	stopped bool
}

// NewIndicator builds an indicator with the given quiet period;
// quiet <= 0 selects DefaultQuiet.
func NewIndicator(quiet time.Duration) *Indicator {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Indicator{quiet: quiet}
}

// Set records identity as currently typing with a fresh expiry,
// cancelling any prior pending expiry.
func (i *Indicator) Set(identity string) {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return
	}
	i.who = identity
	i.gen++
	gen := i.gen
	if i.timer != nil {
		i.timer.Stop()
	}
	i.timer = time.AfterFunc(i.quiet, func() { i.expire(gen) })
	cb := i.OnChange
	i.mu.Unlock()

	if cb != nil {
		cb(identity)
	}
}

// expire clears the slot unless a newer Set superseded this timer.
func (i *Indicator) expire(gen uint64) {
	i.mu.Lock()
	if i.stopped || gen != i.gen {
		i.mu.Unlock()
		return
	}
	i.who = ""
	i.gen++
	i.timer = nil
	cb := i.OnChange
	i.mu.Unlock()

	if cb != nil {
		cb("")
	}
}

// Current returns the identity currently typing, or "".
func (i *Indicator) Current() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.who
}

// Stop cancels the pending timer and permanently disables the
// indicator. Used on session teardown so a stale callback cannot
// mutate state afterwards.
func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	i.who = ""
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}
