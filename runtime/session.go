package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// State is the lifecycle of a session. There is no transition out of Closed.
type State int32

const (
	Connecting State = iota
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Active:
		return "ACTIVE"
	case Closing:
		return "CLOSING"
	default:
		return "CLOSED"
	}
}

// Conn is the transport handle a session delivers through. Framing and
// the actual network write belong to the transport layer; a bounded write
// deadline is its concern too, and a deadline violation surfaces here as
// a send error.
type Conn interface {
	Send(m chat.Message) error
	Close() error
}

// Session represents one live client connection and owns its outbound
// delivery queue. It is created by the transport layer on a new
// authenticated connection and destroyed on disconnect or fatal send error.
type Session struct {
	ID       uuid.UUID
	Identity string

	conn      Conn
	out       chan chat.Message
	done      chan struct{}
	state     atomic.Int32
	dropped   atomic.Uint64
	log       *slog.Logger
	registry  *Registry
	events    chan<- event.Event
	closeOnce sync.Once
}

func NewSession(log *slog.Logger, identity string, conn Conn,
	queueSize int, registry *Registry, events chan<- event.Event) *Session {
	s := &Session{
		ID:       uuid.New(),
		Identity: identity,
		conn:     conn,
		out:      make(chan chat.Message, queueSize),
		done:     make(chan struct{}),
		log:      log,
		registry: registry,
		events:   events,
	}
	s.state.Store(int32(Connecting))
	return s
}

// Activate completes the handshake: the session becomes visible to the
// router's fan-out resolution. Must be called before Run.
func (s *Session) Activate() {
	if s.state.CompareAndSwap(int32(Connecting), int32(Active)) {
		s.registry.Register(s.Identity, s)
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Dropped reports how many messages were discarded because the outbound
// queue was saturated.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// Enqueue appends a message to the outbound queue without ever blocking
// the caller. When the bounded queue is full the new message is dropped
// and counted: losing a message to a momentarily slow client is preferable
// to stalling the router, and the message stays recoverable via history.
func (s *Session) Enqueue(m chat.Message) {
	if s.State() != Active {
		return
	}
	select {
	case s.out <- m:
	default:
		n := s.dropped.Add(1)
		s.log.Warn("outbound queue full, dropping message",
			"session_id", s.ID, "identity", s.Identity, "dropped_total", n)
	}
}

// Run is the delivery loop: it dequeues messages in FIFO order and hands
// them to the transport. A send failure is terminal for this session only;
// Run always returns nil so the supervisor never restarts a finished session.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("session drain stopped", "session_id", s.ID)
			return nil
		case <-s.done:
			s.log.Debug("session closed, drain stopped", "session_id", s.ID)
			return nil
		case m := <-s.out:
			if err := s.conn.Send(m); err != nil {
				s.log.Warn("send failed, closing session",
					"session_id", s.ID, "identity", s.Identity, "error",
					fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err))
				return nil
			}
		}
	}
}

// Close transitions the session to its terminal state, stops its drain
// loop, and removes it from the registry synchronously, so no stale
// reference or goroutine survives disconnect.
// Messages still queued are discarded; they remain recoverable via history.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closing))
		s.registry.Unregister(s.Identity, s)
		_ = s.conn.Close()
		close(s.done)
		s.state.Store(int32(Closed))

		if s.events != nil {
			e := event.Event{
				Type:      event.SessionType,
				CreatedAt: time.Now().UTC(),
				Payload: event.SessionClosed{
					SessionID: s.ID,
					Identity:  s.Identity,
					Dropped:   s.Dropped(),
					At:        time.Now().UTC(),
				},
			}
			select {
			case s.events <- e:
			default:
			}
		}
	})
}
