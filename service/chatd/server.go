package chatd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PClient/logger"
	"PClient/service/session"
	"PClient/service/transport"
	"PClient/tools/decode"
	"PClient/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 5 * time.Second
	sendQueue    = 64
)

// Server is the reference room server: one room, one hub, the wire
// contract the client session speaks. Development and test use; not a
// scalable gateway.
type Server struct {
	hub *Hub
}

func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

// Router builds the gin engine with the websocket endpoint.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.GET("/ws", s.handleWS)
	return r
}

// Run serves on addr, blocking.
func (s *Server) Run(port int) error {
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

func (s *Server) handleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[chatd] upgrade: %v", err)
		return
	}

	cl := &client{conn: ws, send: make(chan []byte, sendQueue)}
	done := make(chan struct{})
	safe.SafeGo(func() { s.writeLoop(cl, done) })

	s.readLoop(cl)
	close(done)

	if cl.name != "" {
		s.hub.unregister(cl)
	}
	_ = ws.Close()
}

// readLoop pumps one connection. The first join frame names the
// client; everything before that is ignored. A malformed frame is
// dropped, never fatal.
func (s *Server) readLoop(cl *client) {
	ws := cl.conn
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[chatd] read %s: %v", cl.name, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := transport.DecodeFrame(raw)
		if perr != nil {
			logger.Warnf("[chatd] drop malformed frame from %s: %v", cl.name, perr)
			continue
		}

		if cl.name == "" {
			if f.Event != transport.EventJoin {
				continue
			}
			name, derr := decode.String(f.Payload)
			if derr != nil || name == "" {
				logger.Warnf("[chatd] drop join without identity: %v", derr)
				continue
			}
			cl.name = name
			if !s.hub.register(cl) {
				// name in use: forced notice, then hang up
				s.hub.enqueue(cl, &transport.Frame{
					Event:   transport.EventForcedDisconnect,
					Payload: "name " + name + " is already in use",
				})
				cl.name = ""
				time.Sleep(100 * time.Millisecond) // let the writer flush
				return
			}
			continue
		}

		s.handleFrame(cl, f)
	}
}

func (s *Server) handleFrame(cl *client, f *transport.Frame) {
	switch f.Event {
	case transport.EventJoin:
		// rejoin on an already-joined connection: re-send the snapshot
		s.hub.sendTo(cl.name, &transport.Frame{
			Event:   transport.EventPresenceSnapshot,
			Payload: s.hub.members(),
		})

	case transport.EventSendBroadcast:
		req, err := decode.DecodeEvent[session.SendReq](f.Payload)
		if err != nil || req.Text == "" {
			logger.Warnf("[chatd] drop send_broadcast from %s: %v", cl.name, err)
			return
		}
		s.hub.handleBroadcast(cl, req, f.AckID)

	case transport.EventSendPrivate:
		req, err := decode.DecodeEvent[session.PrivateSendReq](f.Payload)
		if err != nil || req.Recipient == "" || req.Text == "" {
			logger.Warnf("[chatd] drop send_private from %s: %v", cl.name, err)
			return
		}
		s.hub.handlePrivate(cl, req)

	case transport.EventTyping:
		s.hub.handleTyping(cl)

	default:
		logger.Debug("unknown event " + f.Event + " from " + cl.name)
	}
}

// writeLoop owns all writes on the connection, pings included.
func (s *Server) writeLoop(cl *client, done <-chan struct{}) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = cl.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
		case b := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logger.Infof("[chatd] write %s: %v", cl.name, err)
				return
			}
		}
	}
}
