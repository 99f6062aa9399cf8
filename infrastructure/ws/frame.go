package ws

import "chat-relay/domain/chat"

// Frame kinds on the wire. Inbound frames carry a send intent; outbound
// frames carry a delivered message, an accept confirmation, or an explicit
// rejection so a client can always distinguish "sent" from "lost".
const (
	KindPublic  = "public"
	KindPrivate = "private"
	KindMessage = "message"
	KindAck     = "ack"
	KindError   = "error"
)

// InboundFrame is one decoded client frame. To is only meaningful for
// private sends.
type InboundFrame struct {
	Kind string `json:"kind"`
	To   string `json:"to,omitempty"`
	Body string `json:"body"`
}

// OutboundFrame is one frame pushed to a client.
type OutboundFrame struct {
	Kind    string        `json:"kind"`
	Message *chat.Message `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}
