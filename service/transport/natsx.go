package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"PClient/logger"
	"PClient/tools/errs"
	"PClient/tools/safe"
)

// NatsConfig tunes the NATS transport.
type NatsConfig struct {
	Servers       []string
	Name          string        // connection name, shows up in monitoring
	ClientID      string        // per-session inbox suffix
	SubjectPrefix string        // default "chat"
	ReconnectWait time.Duration // default 500ms
	Timeout       time.Duration // default 3s
	AckTimeout    time.Duration // default 5s
}

func (c *NatsConfig) norm() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "chat"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 5 * time.Second
	}
}

// NatsTransport carries the same frame envelope over NATS subjects.
// Outbound events publish to "<prefix>.out.<event>"; the server
// pushes inbound frames to the shared "<prefix>.bcast" subject and to
// the per-client "<prefix>.in.<clientID>" inbox. Acked emits use
// request/reply, so the server's id assignment comes back as the
// reply message. Reconnection is the nats.go client's own; the
// connect callback is re-fired from its reconnect handler.
type NatsTransport struct {
	conf NatsConfig

	mu           sync.RWMutex
	nc           *nats.Conn
	subs         []*nats.Subscription
	handlers     map[string][]Handler
	onConnect    []func()
	onDisconnect []func(reason string)

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewNats(conf NatsConfig) *NatsTransport {
	conf.norm()
	return &NatsTransport{
		conf:     conf,
		handlers: make(map[string][]Handler),
		stopCh:   make(chan struct{}),
	}
}

func (t *NatsTransport) On(event string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = append(t.handlers[event], h)
}

func (t *NatsTransport) OnConnect(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnect = append(t.onConnect, f)
}

func (t *NatsTransport) OnDisconnect(f func(reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = append(t.onDisconnect, f)
}

func (t *NatsTransport) Connect(ctx context.Context) error {
	if len(t.conf.Servers) == 0 {
		return errs.ErrNotConnected.WrapMsg("nats servers missing")
	}
	opts := []nats.Option{
		nats.Name(t.conf.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(t.conf.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(t.conf.Timeout),
		nats.ReconnectHandler(func(*nats.Conn) {
			t.fireConnect()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			reason := "connection lost"
			if err != nil {
				reason = err.Error()
			}
			t.fireDisconnect(reason)
		}),
	}
	nc, err := nats.Connect(strings.Join(t.conf.Servers, ","), opts...)
	if err != nil {
		return errs.WrapMsg(err, "nats connect")
	}

	inbound := func(m *nats.Msg) {
		f, perr := DecodeFrame(m.Data)
		if perr != nil {
			logger.Warnf("[nats] drop malformed frame: %v", perr)
			return
		}
		t.dispatch(f)
	}

	subjects := []string{
		t.conf.SubjectPrefix + ".bcast",
		t.conf.SubjectPrefix + ".in." + t.conf.ClientID,
	}
	var subs []*nats.Subscription
	for _, subj := range subjects {
		sub, serr := nc.Subscribe(subj, inbound)
		if serr != nil {
			_ = nc.Drain()
			return errs.WrapMsg(serr, "nats subscribe", "subject", subj)
		}
		subs = append(subs, sub)
	}

	t.mu.Lock()
	t.nc = nc
	t.subs = subs
	t.mu.Unlock()

	t.fireConnect()
	return nil
}

func (t *NatsTransport) conn() (*nats.Conn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.nc == nil {
		return nil, errs.ErrNotConnected.Wrap()
	}
	return t.nc, nil
}

func (t *NatsTransport) Emit(event string, payload any) error {
	nc, err := t.conn()
	if err != nil {
		return err
	}
	b, err := EncodeFrame(&Frame{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return errs.WrapMsg(nc.Publish(t.outSubject(event), b), "nats publish", "event", event)
}

func (t *NatsTransport) EmitWithAck(event string, payload any) (*AckFuture, error) {
	nc, err := t.conn()
	if err != nil {
		return nil, err
	}
	b, err := EncodeFrame(&Frame{Event: event, Payload: payload})
	if err != nil {
		return nil, err
	}

	fut := NewAckFuture()
	subject := t.outSubject(event)
	timeout := t.conf.AckTimeout
	safe.SafeGo(func() {
		msg, rerr := nc.Request(subject, b, timeout)
		if rerr != nil {
			fut.Fail(errs.WrapMsg(rerr, "nats request", "event", event))
			return
		}
		reply, perr := DecodeFrame(msg.Data)
		if perr != nil {
			fut.Fail(perr)
			return
		}
		fut.Resolve(reply.Payload)
	})
	return fut, nil
}

func (t *NatsTransport) outSubject(event string) string {
	return t.conf.SubjectPrefix + ".out." + event
}

func (t *NatsTransport) dispatch(f *Frame) {
	t.mu.RLock()
	hs := append([]Handler(nil), t.handlers[f.Event]...)
	t.mu.RUnlock()
	for _, h := range hs {
		h := h
		safe.SafeCall(func() { h(f.Payload) })
	}
}

func (t *NatsTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.mu.Lock()
		nc := t.nc
		subs := t.subs
		t.nc = nil
		t.subs = nil
		t.mu.Unlock()
		for _, s := range subs {
			_ = s.Drain()
		}
		if nc != nil {
			err = nc.Drain()
		}
	})
	return err
}

func (t *NatsTransport) fireConnect() {
	select {
	case <-t.stopCh:
		return
	default:
	}
	t.mu.RLock()
	fs := make([]func(), len(t.onConnect))
	copy(fs, t.onConnect)
	t.mu.RUnlock()
	for _, f := range fs {
		safe.SafeCall(f)
	}
}

func (t *NatsTransport) fireDisconnect(reason string) {
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
