package safe

import (
	"PClient/logger"
)

// SafeGo starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] panic recovered: %v", r)
			}
		}()
		f()
	}()
}

// SafeCall invokes f inline with panic recovery. Used for event
// handlers where a panicking callback must not kill the read loop.
func SafeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[SafeCall] panic recovered: %v", r)
		}
	}()
	f()
}
