package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"PClient/logger"
	"PClient/service/notify"
	"PClient/service/presence"
	"PClient/service/timeline"
	"PClient/service/transport"
	"PClient/service/typing"
	"PClient/tools/decode"
	"PClient/tools/errs"
	"PClient/tools/safe"
)

// State is the session lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateJoining
	StateJoined
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	default:
		return "terminated"
	}
}

// Config assembles a session.
type Config struct {
	Identity    string              // non-empty display name
	Transport   transport.Transport // owned by the session for its lifetime
	Sink        notify.Sink         // nil => NopSink
	TypingQuiet time.Duration       // <=0 => typing.DefaultQuiet
}

// Session is the client-side view of one shared chat room over one
// transport handle. It folds the inbound event stream into the
// timeline, roster and typing slot, and exposes the user-facing send
// operations. All component state survives a transport drop; a full
// presence re-sync arrives from the server after rejoin.
type Session struct {
	identity string
	tr       transport.Transport
	sink     notify.Sink

	Log    *timeline.Timeline
	Roster *presence.Roster
	Typing *typing.Indicator

	mu    sync.Mutex
	state State
}

// New wires a session onto its transport. The transport is connected
// separately via Start.
func New(conf Config) (*Session, error) {
	if strings.TrimSpace(conf.Identity) == "" {
		badID := errs.NewCodeError(errs.CodeMalformedEvent, "identity must not be empty")
		return nil, badID.Wrap()
	}
	if conf.Transport == nil {
		return nil, errs.ErrNotConnected.WrapMsg("transport is nil")
	}
	if conf.Sink == nil {
		conf.Sink = notify.NopSink{}
	}

	s := &Session{
		identity: conf.Identity,
		tr:       conf.Transport,
		sink:     conf.Sink,
		state:    StateDisconnected,
	}
	s.Log = timeline.New(timeline.Config{Sink: conf.Sink})
	s.Roster = presence.NewRoster(conf.Identity, s.Log.AppendNotification)
	s.Typing = typing.NewIndicator(conf.TypingQuiet)

	s.wire()
	return s, nil
}

// wire subscribes every inbound event and the lifecycle callbacks.
// Handlers gate on the terminated flag so a late event after teardown
// cannot mutate state, and drop malformed payloads without touching
// anything else.
func (s *Session) wire() {
	s.tr.OnConnect(func() {
		if s.terminated() {
			return
		}
		s.setState(StateJoined)
		// one join announcement per connection establishment,
		// reconnects included
		if err := s.tr.Emit(transport.EventJoin, s.identity); err != nil {
			logger.Warnf("[session] join announce failed: %v", err)
		}
	})

	s.tr.OnDisconnect(func(reason string) {
		if s.terminated() {
			return
		}
		logger.Infof("[session] transport down: %s", reason)
		s.setState(StateDisconnected)
	})

	s.tr.On(transport.EventBroadcastReceived, func(payload any) {
		if s.terminated() {
			return
		}
		msg, err := decode.DecodeEvent[BroadcastMsg](payload)
		if err != nil || msg.Sender == "" {
			logger.Warnf("[session] drop broadcast_received: %v", err)
			return
		}
		var at time.Time
		if msg.Timestamp > 0 {
			at = time.UnixMilli(msg.Timestamp)
		}
		s.Log.AppendReceived(msg.ID, msg.Sender, msg.Text, at)
	})

	s.tr.On(transport.EventPrivateReceived, func(payload any) {
		if s.terminated() {
			return
		}
		msg, err := decode.DecodeEvent[PrivateMsg](payload)
		if err != nil || msg.Sender == "" {
			logger.Warnf("[session] drop private_received: %v", err)
			return
		}
		s.Log.AppendPrivate(msg.Sender, msg.Recipient, msg.Text, msg.IsSender)
	})

	membership := func(payload any) {
		if s.terminated() {
			return
		}
		ev, err := decode.DecodeEvent[Membership](payload)
		if err != nil || ev.Members == nil {
			logger.Warnf("[session] drop membership event: %v", err)
			return
		}
		s.Roster.ApplyMembership(ev.Message, ev.Members)
	}
	s.tr.On(transport.EventPresenceJoined, membership)
	s.tr.On(transport.EventPresenceLeft, membership)

	s.tr.On(transport.EventPresenceSnapshot, func(payload any) {
		if s.terminated() {
			return
		}
		members, err := decode.StringSlice(payload)
		if err != nil {
			logger.Warnf("[session] drop presence_snapshot: %v", err)
			return
		}
		s.Roster.ApplySnapshot(members)
	})

	s.tr.On(transport.EventTypingNotice, func(payload any) {
		if s.terminated() {
			return
		}
		who, err := decode.String(payload)
		if err != nil || who == "" {
			logger.Warnf("[session] drop typing_notice: %v", err)
			return
		}
		s.Typing.Set(who)
	})

	s.tr.On(transport.EventForcedDisconnect, func(payload any) {
		if s.terminated() {
			return
		}
		msg, err := decode.String(payload)
		if err != nil {
			msg = "disconnected by server"
		}
		s.sink.Notify("Disconnected", msg)
		s.setState(StateDisconnected)
	})
}

// Start initiates the transport connection. The join announcement
// itself rides on the transport's connect callback.
func (s *Session) Start(ctx context.Context) error {
	if s.terminated() {
		return errs.ErrTerminated.Wrap()
	}
	s.setState(StateJoining)
	if err := s.tr.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return err
	}
	return nil
}

// SendBroadcast optimistically appends the message and emits the send
// request. The pending entry resolves to Delivered when the server's
// acknowledgment arrives; resolution always happens strictly after
// the append, on the future's continuation, never inline.
func (s *Session) SendBroadcast(text string) error {
	if s.terminated() {
		return errs.ErrTerminated.Wrap()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pid := s.Log.BeginSend(text, s.identity)
	fut, err := s.tr.EmitWithAck(transport.EventSendBroadcast, SendReq{Text: text, Identity: s.identity})
	if err != nil {
		// entry stays Sending; a later retry is the user's call
		logger.Warnf("[session] send_broadcast emit failed: %v", err)
		return err
	}

	safe.SafeGo(func() {
		<-fut.Done()
		res, ferr := fut.Result()
		if ferr != nil {
			logger.Warnf("[session] send_broadcast ack failed: %v", ferr)
			return
		}
		ack, derr := decode.DecodeEvent[SendAck](res)
		if derr != nil || ack.ServerID == "" {
			logger.Warnf("[session] drop malformed send ack: %v", derr)
			return
		}
		s.Log.ResolveSend(pid, ack.ServerID)
	})
	return nil
}

// SendPrivate emits a directed message. The timeline entry appears
// when the server echoes it back with isSender set.
func (s *Session) SendPrivate(recipient, text string) error {
	if s.terminated() {
		return errs.ErrTerminated.Wrap()
	}
	text = strings.TrimSpace(text)
	if recipient == "" || text == "" {
		return nil
	}
	return s.tr.Emit(transport.EventSendPrivate, PrivateSendReq{
		Sender:    s.identity,
		Recipient: recipient,
		Text:      text,
	})
}

// StartPrivateChat is the pass-through behind the UI's "message this
// user" affordance; prompting for the text is the UI's business.
func (s *Session) StartPrivateChat(recipient, text string) error {
	return s.SendPrivate(recipient, text)
}

// ReportTyping emits a typing notice whenever the local input is
// non-empty. Deliberately chatty; the server side fans it out and the
// receiving indicator debounces via its quiet period.
func (s *Session) ReportTyping(text string) {
	if s.terminated() || strings.TrimSpace(text) == "" {
		return
	}
	if err := s.tr.Emit(transport.EventTyping, s.identity); err != nil {
		logger.Debug("typing emit failed: " + err.Error())
	}
}

// Identity returns the local display name.
func (s *Session) Identity() string { return s.identity }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Terminate tears the session down: the typing timer is cancelled,
// the transport closed, and every handler goes inert. Late
// acknowledgments after teardown no-op through ResolveSend.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.mu.Unlock()

	s.Typing.Stop()
	if err := s.tr.Close(); err != nil {
		logger.Warnf("[session] transport close: %v", err)
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = next
}

func (s *Session) terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateTerminated
}
