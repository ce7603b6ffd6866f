package chatd

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"PClient/logger"
	"PClient/service/session"
	"PClient/service/transport"
)

// client is one joined connection. A single writer goroutine consumes
// the send queue; everything else only enqueues.
type client struct {
	name string
	conn *websocket.Conn
	send chan []byte
}

// Hub is the room state: who is online and how to reach them. One hub
// per process, one room. Nothing is persisted; the room exists only
// while the process runs.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client // name -> client

	nextID   atomic.Int64
	presence *PresenceMirror // optional, nil when redis is not configured
}

func NewHub(presence *PresenceMirror) *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		presence: presence,
	}
}

// assignID issues the next server message id.
func (h *Hub) assignID() string {
	return strconv.FormatInt(h.nextID.Add(1), 10)
}

// members returns the sorted full member list, shipped with every
// presence event so clients can re-derive their roster.
func (h *Hub) members() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for name := range h.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// register adds a joined client. Reports false when the name is
// already taken.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if _, taken := h.clients[c.name]; taken {
		h.mu.Unlock()
		return false
	}
	h.clients[c.name] = c
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.Online(c.name); err != nil {
			logger.Warnf("[chatd] presence online %s: %v", c.name, err)
		}
	}

	h.broadcast(&transport.Frame{
		Event: transport.EventPresenceJoined,
		Payload: session.Membership{
			Message: c.name + " joined the chat",
			Members: h.members(),
		},
	}, "")
	h.sendTo(c.name, &transport.Frame{
		Event:   transport.EventPresenceSnapshot,
		Payload: h.members(),
	})
	return true
}

// unregister drops a client and announces the departure.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	cur, ok := h.clients[c.name]
	if !ok || cur != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.name)
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.Offline(c.name); err != nil {
			logger.Warnf("[chatd] presence offline %s: %v", c.name, err)
		}
	}

	h.broadcast(&transport.Frame{
		Event: transport.EventPresenceLeft,
		Payload: session.Membership{
			Message: c.name + " left the chat",
			Members: h.members(),
		},
	}, "")
}

// handleBroadcast assigns a server id, acks the sender and fans the
// message out to everyone else.
func (h *Hub) handleBroadcast(c *client, req *session.SendReq, ackID string) {
	id := h.assignID()
	if ackID != "" {
		h.enqueue(c, transport.AckFrame(ackID, session.SendAck{ServerID: id}))
	}
	h.broadcast(&transport.Frame{
		Event: transport.EventBroadcastReceived,
		Payload: session.BroadcastMsg{
			ID:        id,
			Sender:    c.name,
			Text:      req.Text,
			Timestamp: time.Now().UnixMilli(),
		},
	}, c.name)
}

// handlePrivate routes a directed message to its recipient and echoes
// it back to the sender with isSender set.
func (h *Hub) handlePrivate(c *client, req *session.PrivateSendReq) {
	msg := session.PrivateMsg{
		Sender:    c.name,
		Recipient: req.Recipient,
		Text:      req.Text,
	}
	h.sendTo(req.Recipient, &transport.Frame{Event: transport.EventPrivateReceived, Payload: msg})

	echo := msg
	echo.IsSender = true
	h.sendTo(c.name, &transport.Frame{Event: transport.EventPrivateReceived, Payload: echo})
}

// handleTyping fans the notice out to everyone but the typist.
func (h *Hub) handleTyping(c *client) {
	h.broadcast(&transport.Frame{Event: transport.EventTypingNotice, Payload: c.name}, c.name)
}

// broadcast enqueues the frame for every client except skip.
func (h *Hub) broadcast(f *transport.Frame, skip string) {
	b, err := transport.EncodeFrame(f)
	if err != nil {
		logger.Errorf("[chatd] encode %s: %v", f.Event, err)
		return
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for name, c := range h.clients {
		if name == skip {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- b:
		default:
			logger.Warnf("[chatd] send queue full, drop %s for %s", f.Event, c.name)
		}
	}
}

// sendTo enqueues the frame for a single named client.
func (h *Hub) sendTo(name string, f *transport.Frame) {
	h.mu.RLock()
	c, ok := h.clients[name]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.enqueue(c, f)
}

func (h *Hub) enqueue(c *client, f *transport.Frame) {
	b, err := transport.EncodeFrame(f)
	if err != nil {
		logger.Errorf("[chatd] encode %s: %v", f.Event, err)
		return
	}
	select {
	case c.send <- b:
	default:
		logger.Warnf("[chatd] send queue full, drop %s for %s", f.Event, c.name)
	}
}
