package ids

import (
	"strconv"
	"sync"
	"time"
)

// Provisional ids label optimistically appended entries until the
// server assigns a real id. They are ms-timestamp plus a 12-bit
// sequence, so ids issued within the same millisecond stay distinct
// and the sequence is monotonic per process. The "p-" prefix keeps
// them out of the server id namespace.

const provisionalPrefix = "p-"

type generator struct {
	mu       sync.Mutex
	epochMS  int64
	seq      int64 // 0~4095
	lastTSMS int64
}

var (
	defaultGen *generator
	once       sync.Once
)

func initDefault() {
	once.Do(func() {
		defaultGen = &generator{
			epochMS: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		}
	})
}

// Provisional returns a fresh provisional entry id.
func Provisional() string {
	initDefault()
	return provisionalPrefix + strconv.FormatInt(defaultGen.next(), 10)
}

// IsProvisional reports whether id was issued by Provisional.
func IsProvisional(id string) bool {
	return len(id) > len(provisionalPrefix) && id[:len(provisionalPrefix)] == provisionalPrefix
}

func (g *generator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := time.Now().UnixMilli()
		if now < g.lastTSMS {
			// Clock went backwards, wait it out.
			time.Sleep(time.Duration(g.lastTSMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastTSMS {
			g.seq = (g.seq + 1) & 0xFFF
			if g.seq == 0 {
				for now <= g.lastTSMS {
					now = time.Now().UnixMilli()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastTSMS = now

		return ((now - g.epochMS) << 12) | g.seq
	}
}
