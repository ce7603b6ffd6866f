package transport

import (
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f := &Frame{
		Event:   EventSendBroadcast,
		Payload: map[string]any{"text": "hi", "identity": "alice"},
		AckID:   "ack-1",
	}
	b, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Event != f.Event || got.AckID != f.AckID {
		t.Fatalf("envelope mismatch: %+v", got)
	}
	payload, ok := got.Payload.(map[string]any)
	if !ok || payload["text"] != "hi" {
		t.Fatalf("payload mismatch: %#v", got.Payload)
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if _, err := DecodeFrame([]byte(`{"payload":{"x":1}}`)); err == nil {
		t.Fatal("expected error for missing event name")
	}
}

func TestAckFutureResolvesOnce(t *testing.T) {
	fut := NewAckFuture()

	fut.Resolve("first")
	fut.Resolve("second")
	fut.Fail(nil)

	<-fut.Done()
	res, err := fut.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "first" {
		t.Fatalf("only the first resolution may take effect, got %v", res)
	}
}

func TestPipeDelivery(t *testing.T) {
	a, b := NewPipe()

	var got any
	b.On("ping", func(payload any) { got = payload })

	if err := a.Emit("ping", "payload"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got != "payload" {
		t.Fatalf("peer did not receive emit, got %v", got)
	}

	b.HandleAck("ask", func(payload any) any { return "answer" })
	fut, err := a.EmitWithAck("ask", nil)
	if err != nil {
		t.Fatalf("emit with ack: %v", err)
	}
	<-fut.Done()
	res, err := fut.Result()
	if err != nil || res != "answer" {
		t.Fatalf("ack round trip failed: %v %v", res, err)
	}

	_ = a.Close()
	if err := a.Emit("ping", nil); err == nil {
		t.Fatal("emit on closed pipe must fail")
	}
}
