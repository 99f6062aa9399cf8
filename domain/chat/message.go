package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicReceiver is the sentinel receiver name used for messages addressed
// to the shared public channel rather than a single identity.
const PublicReceiver = ""

// publicConversation is the key under which the public feed is stored.
// Usernames are validated as alphanumeric so it cannot collide with a pair key.
const publicConversation = "public"

// Message is a single chat message as persisted and delivered.
// Immutable after creation: the store assigns ID, the router assigns At.
type Message struct {
	ID       uuid.UUID `json:"id"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"` // PublicReceiver for the public channel
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

// Public reports whether the message is addressed to the public channel.
func (m Message) Public() bool {
	return m.Receiver == PublicReceiver
}

// ConversationKey returns the canonical storage key of a conversation.
// Private pairs are normalized by sorting both identities so that (a,b)
// and (b,a) address the same history.
func ConversationKey(a, b string) string {
	if a == PublicReceiver || b == PublicReceiver {
		return publicConversation
	}
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Conversation returns the storage key the message belongs to.
func (m Message) Conversation() string {
	if m.Public() {
		return publicConversation
	}
	return ConversationKey(m.Sender, m.Receiver)
}
