// Package runtime hosts the message routing and session engine: the
// presence registry, the per-connection sessions, and the router that
// accepts inbound messages, persists them, and fans them out.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
)

// Router dispatches inbound messages to their fan-out target. It is safe
// for concurrent use by many sender contexts: the only state it guards
// itself is the shared timestamp clock; session-set mutation is the
// registry's concern and the store serializes its own writes.
//
// The store write happens-before the fan-out enqueue. A reader of history
// can therefore never see a message that a connected peer missed because
// of a crash between persist and deliver.
type Router struct {
	log       *slog.Logger
	repo      contract.IMessageRepository
	registry  *Registry
	moderator *moderation.Moderator
	events    chan<- event.Event
	maxBody   int

	mu   sync.Mutex
	last time.Time
}

func NewRouter(log *slog.Logger, repo contract.IMessageRepository,
	registry *Registry, moderator *moderation.Moderator,
	events chan<- event.Event, maxBody int) *Router {
	return &Router{
		log:       log,
		repo:      repo,
		registry:  registry,
		moderator: moderator,
		events:    events,
		maxBody:   maxBody,
	}
}

// AcceptPublic persists a public message and broadcasts it to every
// currently registered session, the sender's own other devices included.
// A store failure aborts the operation before any delivery and is surfaced
// synchronously so the caller can reject the send explicitly.
func (r *Router) AcceptPublic(ctx context.Context, sender, body string) (chat.Message, error) {
	m, err := r.accept(sender, chat.PublicReceiver, body)
	if err != nil {
		return chat.Message{}, err
	}

	targets := r.registry.AllSessions()
	r.deliver(m, targets)
	r.publish(ctx, m, len(targets))
	return m, nil
}

// SendPrivate persists a private message and delivers it to every live
// session of the receiver identity only, never to the sender's other
// devices. An offline receiver is not an error: the message is already
// durable and will be seen on the next history fetch.
func (r *Router) SendPrivate(ctx context.Context, sender, receiver, body string) error {
	m, err := r.accept(sender, receiver, body)
	if err != nil {
		return err
	}

	targets := r.registry.SessionsFor(receiver)
	r.deliver(m, targets)
	r.publish(ctx, m, len(targets))
	return nil
}

// FetchHistory returns every persisted message of the pair in either
// direction, ascending by timestamp with ties broken by insertion order.
// Pure read: calling it again with no new messages yields the same result.
func (r *Router) FetchHistory(a, b string) ([]chat.Message, error) {
	return r.repo.Query(a, b)
}

// FetchHistoryPage returns the latest page of a conversation, newest
// first, with an opaque cursor for older pages.
func (r *Router) FetchHistoryPage(q chat.HistoryQuery) ([]chat.Message, *string, error) {
	return r.repo.QueryLatest(q.A, q.B, q.Cursor)
}

// accept runs the shared persist path: moderation, timestamp assignment,
// durable write. No delivery happens here.
func (r *Router) accept(sender, receiver, body string) (chat.Message, error) {
	if r.maxBody > 0 && len(body) > r.maxBody {
		return chat.Message{}, errors.ErrMessageTooLong
	}
	if r.moderator != nil {
		body, _ = r.moderator.Censor(body)
	}

	m := chat.Message{
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
		At:       r.nextTimestamp(),
	}
	persisted, err := r.repo.Store(m)
	if err != nil {
		r.log.Error("message rejected, store unavailable",
			"sender", sender, "error", err)
		return chat.Message{}, err
	}
	return persisted, nil
}

// nextTimestamp assigns a server timestamp that never decreases across
// senders, so history ordering is consistent with live delivery order.
func (r *Router) nextTimestamp() time.Time {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Before(r.last) {
		now = r.last
	}
	r.last = now
	return now
}

// deliver enqueues the message on each resolved session. A saturated or
// failing recipient is isolated inside its session and never aborts
// delivery to the others.
func (r *Router) deliver(m chat.Message, targets []*Session) {
	for _, s := range targets {
		s.Enqueue(m)
	}
}

// publish pushes an observability event without ever blocking the accept path.
func (r *Router) publish(_ context.Context, m chat.Message, recipients int) {
	if r.events == nil {
		return
	}
	e := event.Event{
		Type:      event.MessageType,
		CreatedAt: time.Now().UTC(),
		Payload: event.MessagePosted{
			ID:         m.ID,
			Sender:     m.Sender,
			Receiver:   m.Receiver,
			Body:       m.Body,
			At:         m.At,
			Recipients: recipients,
		},
	}
	select {
	case r.events <- e:
	default:
		r.log.Debug("observability event lost, channel full")
	}
}
