// Package projection holds in-memory read models derived from the event
// stream. Projections are best-effort: the durable history store remains
// the source of truth.
package projection

import (
	"context"
	"sync"

	"chat-relay/domain/chat"
	"chat-relay/domain/event"
)

// Timeline keeps a bounded tail of the public feed for cheap "recent
// messages" reads without touching the store.
type Timeline struct {
	mu       sync.RWMutex
	capacity int
	messages []chat.Message
}

func NewTimeline(capacity int) *Timeline {
	return &Timeline{capacity: capacity}
}

func (t *Timeline) Consume(_ context.Context, e event.Event) error {
	posted, ok := e.Payload.(event.MessagePosted)
	if !ok || posted.Receiver != chat.PublicReceiver {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, chat.Message{
		ID:       posted.ID,
		Sender:   posted.Sender,
		Receiver: posted.Receiver,
		Body:     posted.Body,
		At:       posted.At,
	})
	if t.capacity > 0 && len(t.messages) > t.capacity {
		t.messages = t.messages[len(t.messages)-t.capacity:]
	}
	return nil
}

// Recent returns a copy of the retained tail, oldest first.
func (t *Timeline) Recent() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]chat.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
