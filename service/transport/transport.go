package transport

import (
	"context"
	"sync"
)

// Wire event names. Outbound events are emitted by the client
// session; inbound events arrive from the server.
const (
	EventJoin          = "join"
	EventSendBroadcast = "send_broadcast"
	EventSendPrivate   = "send_private"
	EventTyping        = "typing"

	EventBroadcastReceived = "broadcast_received"
	EventPrivateReceived   = "private_received"
	EventPresenceJoined    = "presence_joined"
	EventPresenceLeft      = "presence_left"
	EventPresenceSnapshot  = "presence_snapshot"
	EventTypingNotice      = "typing_notice"
	EventForcedDisconnect  = "forced_disconnect"
)

// Handler consumes one inbound event payload. The payload is the raw
// decoded JSON value (map, slice or scalar); handlers run decoding
// into typed structs themselves and drop events that fail.
type Handler func(payload any)

// Transport is an asynchronous bidirectional event channel. Delivery
// is at-least-once; event order is only guaranteed per event type
// from a single sender. Implementations own reconnection and fire the
// connect callback again on every re-establishment.
type Transport interface {
	// Connect establishes the channel. Blocks until the first
	// connection succeeds or ctx is done.
	Connect(ctx context.Context) error

	// Emit sends a fire-and-forget event.
	Emit(event string, payload any) error

	// EmitWithAck sends an event whose receiver replies with an
	// acknowledgment body. The returned future resolves exactly once.
	EmitWithAck(event string, payload any) (*AckFuture, error)

	// On registers a handler for an inbound event. Handlers for the
	// same event run in registration order, serially.
	On(event string, h Handler)

	// OnConnect registers a callback fired on every successful
	// connection establishment, including reconnections.
	OnConnect(f func())

	// OnDisconnect registers a callback fired when the channel drops.
	OnDisconnect(f func(reason string))

	// Close tears the channel down. No callbacks fire afterwards.
	Close() error
}

// AckFuture is the continuation of an acked emit. It resolves exactly
// once; late or duplicate resolutions are ignored.
type AckFuture struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func NewAckFuture() *AckFuture {
	return &AckFuture{done: make(chan struct{})}
}

// Resolve completes the future with the ack body. Only the first
// resolution takes effect.
func (f *AckFuture) Resolve(result any) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

// Fail completes the future with an error (connection lost before the
// ack arrived). Only the first resolution takes effect.
func (f *AckFuture) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has resolved or failed.
func (f *AckFuture) Done() <-chan struct{} { return f.done }

// Result returns the ack body; valid only after Done is closed.
func (f *AckFuture) Result() (any, error) { return f.result, f.err }
