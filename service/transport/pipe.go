package transport

import (
	"context"
	"sync"

	"PClient/tools/errs"
	"PClient/tools/safe"
)

// Pipe is an in-process Transport pair: whatever one end emits, the
// other end's handlers receive, synchronously. It backs the session
// tests, where the far end plays the server, and doubles as a
// loopback transport for wiring a client and a local room in one
// process. Connect/disconnect transitions are driven explicitly via
// the test hooks.
type Pipe struct {
	mu       sync.RWMutex
	peer     *Pipe
	handlers map[string][]Handler
	ackFns   map[string]func(payload any) any

	onConnect    []func()
	onDisconnect []func(reason string)

	closed bool
}

// NewPipe returns both ends of a connected pair.
func NewPipe() (*Pipe, *Pipe) {
	a := &Pipe{handlers: make(map[string][]Handler), ackFns: make(map[string]func(any) any)}
	b := &Pipe{handlers: make(map[string][]Handler), ackFns: make(map[string]func(any) any)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *Pipe) On(event string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[event] = append(p.handlers[event], h)
}

// HandleAck registers the responder for acked emits arriving from the
// peer. Test hook; a real server assigns ids here.
func (p *Pipe) HandleAck(event string, fn func(payload any) any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ackFns[event] = fn
}

func (p *Pipe) OnConnect(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConnect = append(p.onConnect, f)
}

func (p *Pipe) OnDisconnect(f func(reason string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDisconnect = append(p.onDisconnect, f)
}

// Connect fires the connect callbacks immediately; the pair is always
// "up" unless closed.
func (p *Pipe) Connect(_ context.Context) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errs.ErrTerminated.Wrap()
	}
	p.mu.RUnlock()
	p.TriggerConnect()
	return nil
}

func (p *Pipe) Emit(event string, payload any) error {
	p.mu.RLock()
	closed, peer := p.closed, p.peer
	p.mu.RUnlock()
	if closed {
		return errs.ErrTerminated.Wrap()
	}
	peer.deliver(event, payload)
	return nil
}

func (p *Pipe) EmitWithAck(event string, payload any) (*AckFuture, error) {
	p.mu.RLock()
	closed, peer := p.closed, p.peer
	p.mu.RUnlock()
	if closed {
		return nil, errs.ErrTerminated.Wrap()
	}

	fut := NewAckFuture()
	peer.mu.RLock()
	fn := peer.ackFns[event]
	peer.mu.RUnlock()
	if fn == nil {
		peer.deliver(event, payload)
		fut.Fail(errs.ErrUnknownAck.WrapMsg("peer has no ack responder", "event", event))
		return fut, nil
	}
	fut.Resolve(fn(payload))
	return fut, nil
}

func (p *Pipe) deliver(event string, payload any) {
	p.mu.RLock()
	hs := append([]Handler(nil), p.handlers[event]...)
	p.mu.RUnlock()
	for _, h := range hs {
		h := h
		safe.SafeCall(func() { h(payload) })
	}
}

func (p *Pipe) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// TriggerConnect simulates a (re)connection establishment.
func (p *Pipe) TriggerConnect() {
	p.mu.RLock()
	fs := make([]func(), len(p.onConnect))
	copy(fs, p.onConnect)
	p.mu.RUnlock()
	for _, f := range fs {
		f()
	}
}

// TriggerDisconnect simulates a transport-level drop.
func (p *Pipe) TriggerDisconnect(reason string) {
	p.mu.RLock()
	fs := make([]func(string), len(p.onDisconnect))
	copy(fs, p.onDisconnect)
	p.mu.RUnlock()
	for _, f := range fs {
		f(reason)
	}
}
