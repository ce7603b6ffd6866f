package session

// Typed payloads for the wire events. Field names follow the wire
// contract; decoding is weakly typed, so a numeric id on the wire
// still lands in the string field.

// BroadcastMsg is the body of broadcast_received.
type BroadcastMsg struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix ms; 0 means "now"
}

// PrivateMsg is the body of private_received. IsSender marks the
// local echo of one's own outgoing private message.
type PrivateMsg struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	IsSender  bool   `json:"isSender"`
}

// Membership is the body of presence_joined / presence_left. Members
// is the full authoritative list, shipped with every event.
type Membership struct {
	Message string   `json:"message"`
	Members []string `json:"members"`
}

// SendReq is the body of send_broadcast.
type SendReq struct {
	Text     string `json:"text"`
	Identity string `json:"identity"`
}

// PrivateSendReq is the body of send_private.
type PrivateSendReq struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// SendAck is the acknowledgment body for send_broadcast.
type SendAck struct {
	ServerID string `json:"serverId"`
}
