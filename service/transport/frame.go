package transport

import (
	"encoding/json"

	"PClient/tools/errs"
)

// ackEvent marks a frame as the reply to an acked emit; AckID links
// it back to the originating frame.
const ackEvent = "_ack"

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
	AckID   string `json:"ack_id,omitempty"`
}

// EncodeFrame marshals a frame for the wire.
func EncodeFrame(f *Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode frame", "event", f.Event)
	}
	return b, nil
}

// DecodeFrame parses a wire frame. A frame without an event name is
// malformed.
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapMsg(err, "decode frame", "len", len(raw))
	}
	if f.Event == "" {
		return nil, errs.ErrMalformedEvent.WrapMsg("frame missing event name")
	}
	return &f, nil
}

// AckFrame builds the reply to frame with the given body.
func AckFrame(ackID string, body any) *Frame {
	return &Frame{Event: ackEvent, Payload: body, AckID: ackID}
}
