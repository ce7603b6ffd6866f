package notify

import (
	"fmt"
	"io"
	"sync"

	"PClient/logger"
)

// Sink receives attention-routing notifications from the session:
// private message arrivals and server-forced disconnects. The session
// decides when to notify, the sink decides how. Implementations must
// be safe for concurrent use.
type Sink interface {
	Notify(title, body string)
}

// LogSink writes notifications to the process log.
type LogSink struct{}

func (LogSink) Notify(title, body string) {
	logger.Infof("[notify] %s: %s", title, body)
}

// BellSink rings the terminal bell and prints one line per
// notification. Suitable for an interactive terminal client.
type BellSink struct {
	mu sync.Mutex
	W  io.Writer
}

func NewBellSink(w io.Writer) *BellSink {
	return &BellSink{W: w}
}

func (s *BellSink) Notify(title, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.W, "\a*** %s: %s\n", title, body)
}

// NopSink discards notifications.
type NopSink struct{}

func (NopSink) Notify(string, string) {}
