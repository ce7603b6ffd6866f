package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"PClient/logger"
	"PClient/tools/errs"
	"PClient/tools/safe"
)

// WSConfig tunes the websocket transport.
type WSConfig struct {
	URL string

	DialTimeout  time.Duration // default 5s
	WriteTimeout time.Duration // default 5s
	PingInterval time.Duration // default 25s
	PongWait     time.Duration // default 60s
	ReconnectMin time.Duration // default 500ms
	ReconnectMax time.Duration // default 15s
	SendQueue    int           // default 256
}

func (c *WSConfig) norm() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 500 * time.Millisecond
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 15 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// WSTransport is the gorilla/websocket implementation of Transport.
// One writer goroutine per live connection consumes the shared send
// queue; frames queued while the link is down go out after the next
// reconnect. The connect callback fires on every establishment, so
// the session re-announces itself after network loss.
type WSTransport struct {
	conf WSConfig

	mu           sync.RWMutex
	handlers     map[string][]Handler
	onConnect    []func()
	onDisconnect []func(reason string)
	acks         map[string]*AckFuture

	send     chan []byte
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewWS(conf WSConfig) *WSTransport {
	conf.norm()
	return &WSTransport{
		conf:     conf,
		handlers: make(map[string][]Handler),
		acks:     make(map[string]*AckFuture),
		send:     make(chan []byte, conf.SendQueue),
		stopCh:   make(chan struct{}),
	}
}

func (t *WSTransport) On(event string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = append(t.handlers[event], h)
}

func (t *WSTransport) OnConnect(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnect = append(t.onConnect, f)
}

func (t *WSTransport) OnDisconnect(f func(reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = append(t.onDisconnect, f)
}

// Connect dials until the first connection succeeds or ctx is done,
// then hands the link to the background supervisor.
func (t *WSTransport) Connect(ctx context.Context) error {
	backoff := t.conf.ReconnectMin
	for {
		conn, err := t.dial()
		if err == nil {
			safe.SafeGo(func() { t.supervise(conn) })
			t.fireConnect()
			return nil
		}
		logger.Warnf("[ws] dial %s failed: %v, retry in %s", t.conf.URL, err, backoff)
		select {
		case <-ctx.Done():
			return errs.WrapMsg(ctx.Err(), "ws connect", "url", t.conf.URL)
		case <-t.stopCh:
			return errs.ErrTerminated.Wrap()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, t.conf.ReconnectMax)
	}
}

func (t *WSTransport) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.conf.DialTimeout}
	conn, _, err := dialer.Dial(t.conf.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// supervise runs the read loop for each live connection and redials
// with backoff when it drops. Exits only on Close.
func (t *WSTransport) supervise(conn *websocket.Conn) {
	for {
		reason := t.serveConn(conn)
		t.failAcks(errs.ErrNotConnected.WrapMsg(reason))
		t.fireDisconnect(reason)

		select {
		case <-t.stopCh:
			return
		default:
		}

		backoff := t.conf.ReconnectMin
		for {
			c, err := t.dial()
			if err == nil {
				conn = c
				break
			}
			logger.Warnf("[ws] redial failed: %v, retry in %s", err, backoff)
			select {
			case <-t.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, t.conf.ReconnectMax)
		}
		t.fireConnect()
	}
}

// serveConn pumps one connection until it dies and returns the
// close reason. The writer goroutine bound to this connection drains
// the shared send queue and owns all writes, pings included.
func (t *WSTransport) serveConn(conn *websocket.Conn) string {
	done := make(chan struct{})
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(t.conf.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.conf.PongWait))
	})

	safe.SafeGo(func() {
		ping := time.NewTicker(t.conf.PingInterval)
		defer ping.Stop()
		defer func() { _ = conn.Close() }()
		for {
			select {
			case <-t.stopCh:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			case <-done:
				return
			case <-ping.C:
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(t.conf.WriteTimeout))
			case b := <-t.send:
				_ = conn.SetWriteDeadline(time.Now().Add(t.conf.WriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					logger.Warnf("[ws] write: %v", err)
					return
				}
			}
		}
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return err.Error()
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		f, perr := DecodeFrame(raw)
		if perr != nil {
			// one malformed frame must not kill the session
			logger.Warnf("[ws] drop malformed frame: %v", perr)
			continue
		}
		t.dispatch(f)
	}
}

func (t *WSTransport) dispatch(f *Frame) {
	if f.Event == ackEvent {
		t.mu.Lock()
		fut, ok := t.acks[f.AckID]
		if ok {
			delete(t.acks, f.AckID)
		}
		t.mu.Unlock()
		if ok {
			fut.Resolve(f.Payload)
		}
		return
	}

	t.mu.RLock()
	hs := append([]Handler(nil), t.handlers[f.Event]...)
	t.mu.RUnlock()
	for _, h := range hs {
		h := h
		safe.SafeCall(func() { h(f.Payload) })
	}
}

func (t *WSTransport) Emit(event string, payload any) error {
	return t.enqueue(&Frame{Event: event, Payload: payload})
}

func (t *WSTransport) EmitWithAck(event string, payload any) (*AckFuture, error) {
	ackID := uuid.NewString()
	fut := NewAckFuture()

	t.mu.Lock()
	t.acks[ackID] = fut
	t.mu.Unlock()

	if err := t.enqueue(&Frame{Event: event, Payload: payload, AckID: ackID}); err != nil {
		t.mu.Lock()
		delete(t.acks, ackID)
		t.mu.Unlock()
		return nil, err
	}
	return fut, nil
}

func (t *WSTransport) enqueue(f *Frame) error {
	b, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	select {
	case <-t.stopCh:
		return errs.ErrTerminated.Wrap()
	case t.send <- b:
		return nil
	default:
		return errs.ErrNotConnected.WrapMsg("send queue full", "event", f.Event)
	}
}

func (t *WSTransport) Close() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.failAcks(errs.ErrTerminated.Wrap())
	})
	return nil
}

func (t *WSTransport) failAcks(err error) {
	t.mu.Lock()
	pending := t.acks
	t.acks = make(map[string]*AckFuture)
	t.mu.Unlock()
	for _, fut := range pending {
		fut.Fail(err)
	}
}

func (t *WSTransport) fireConnect() {
	t.mu.RLock()
	fs := make([]func(), len(t.onConnect))
	copy(fs, t.onConnect)
	t.mu.RUnlock()
	for _, f := range fs {
		f := f
		safe.SafeCall(f)
	}
}

func (t *WSTransport) fireDisconnect(reason string) {
	select {
	case <-t.stopCh:
		return
	default:
	}
	t.mu.RLock()
	fs := make([]func(string), len(t.onDisconnect))
	copy(fs, t.onDisconnect)
	t.mu.RUnlock()
	for _, f := range fs {
		f := f
		safe.SafeCall(func() { f(reason) })
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
