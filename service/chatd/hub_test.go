package chatd

import (
	"encoding/json"
	"reflect"
	"testing"

	"PClient/service/session"
	"PClient/service/transport"
)

func testClient(name string) *client {
	return &client{name: name, send: make(chan []byte, 16)}
}

func drain(t *testing.T, c *client) []*transport.Frame {
	t.Helper()
	var out []*transport.Frame
	for {
		select {
		case b := <-c.send:
			f, err := transport.DecodeFrame(b)
			if err != nil {
				t.Fatalf("bad frame on queue: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func payloadAs[T any](t *testing.T, f *transport.Frame) T {
	t.Helper()
	b, _ := json.Marshal(f.Payload)
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("payload shape: %v", err)
	}
	return v
}

func TestRegisterAnnouncesAndSnapshots(t *testing.T) {
	h := NewHub(nil)
	alice := testClient("alice")
	bob := testClient("bob")

	if !h.register(alice) {
		t.Fatal("register alice failed")
	}
	drain(t, alice)

	if !h.register(bob) {
		t.Fatal("register bob failed")
	}

	// alice sees the join with the full member list
	af := drain(t, alice)
	if len(af) != 1 || af[0].Event != transport.EventPresenceJoined {
		t.Fatalf("alice frames: %+v", af)
	}
	m := payloadAs[session.Membership](t, af[0])
	if m.Message != "bob joined the chat" || !reflect.DeepEqual(m.Members, []string{"alice", "bob"}) {
		t.Fatalf("membership payload: %+v", m)
	}

	// bob gets the join broadcast plus his own snapshot
	bf := drain(t, bob)
	if len(bf) != 2 || bf[1].Event != transport.EventPresenceSnapshot {
		t.Fatalf("bob frames: %+v", bf)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	h := NewHub(nil)
	if !h.register(testClient("alice")) {
		t.Fatal("first register failed")
	}
	if h.register(testClient("alice")) {
		t.Fatal("duplicate name must be rejected")
	}
}

func TestBroadcastAcksSenderAndFansOut(t *testing.T) {
	h := NewHub(nil)
	alice := testClient("alice")
	bob := testClient("bob")
	h.register(alice)
	h.register(bob)
	drain(t, alice)
	drain(t, bob)

	h.handleBroadcast(alice, &session.SendReq{Text: "hi", Identity: "alice"}, "ack-7")

	af := drain(t, alice)
	if len(af) != 1 || af[0].AckID != "ack-7" {
		t.Fatalf("sender must get exactly the ack: %+v", af)
	}
	ack := payloadAs[session.SendAck](t, af[0])
	if ack.ServerID == "" {
		t.Fatal("ack must carry the server id")
	}

	bf := drain(t, bob)
	if len(bf) != 1 || bf[0].Event != transport.EventBroadcastReceived {
		t.Fatalf("bob frames: %+v", bf)
	}
	msg := payloadAs[session.BroadcastMsg](t, bf[0])
	if msg.ID != ack.ServerID || msg.Sender != "alice" || msg.Text != "hi" {
		t.Fatalf("fanout payload: %+v", msg)
	}
}

func TestPrivateRoutesAndEchoes(t *testing.T) {
	h := NewHub(nil)
	alice := testClient("alice")
	bob := testClient("bob")
	carol := testClient("carol")
	h.register(alice)
	h.register(bob)
	h.register(carol)
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	h.handlePrivate(alice, &session.PrivateSendReq{Sender: "alice", Recipient: "bob", Text: "psst"})

	bf := drain(t, bob)
	if len(bf) != 1 {
		t.Fatalf("bob frames: %+v", bf)
	}
	got := payloadAs[session.PrivateMsg](t, bf[0])
	if got.IsSender || got.Sender != "alice" {
		t.Fatalf("recipient copy: %+v", got)
	}

	af := drain(t, alice)
	echo := payloadAs[session.PrivateMsg](t, af[0])
	if !echo.IsSender || echo.Recipient != "bob" {
		t.Fatalf("sender echo: %+v", echo)
	}

	if cf := drain(t, carol); len(cf) != 0 {
		t.Fatalf("third party must see nothing: %+v", cf)
	}
}

func TestUnregisterAnnouncesDeparture(t *testing.T) {
	h := NewHub(nil)
	alice := testClient("alice")
	bob := testClient("bob")
	h.register(alice)
	h.register(bob)
	drain(t, alice)
	drain(t, bob)

	h.unregister(bob)

	af := drain(t, alice)
	if len(af) != 1 || af[0].Event != transport.EventPresenceLeft {
		t.Fatalf("alice frames: %+v", af)
	}
	m := payloadAs[session.Membership](t, af[0])
	if !reflect.DeepEqual(m.Members, []string{"alice"}) {
		t.Fatalf("members after leave: %v", m.Members)
	}
}

func TestServerIDsAreUnique(t *testing.T) {
	h := NewHub(nil)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := h.assignID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
