package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain/chat"
)

// recordingConn captures delivered messages and can be told to fail.
type recordingConn struct {
	mu     sync.Mutex
	sent   []chat.Message
	failAt int // fail the nth send (1-based), 0 = never
	closed bool
}

func (c *recordingConn) Send(m chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.sent)+1 == c.failAt {
		return fmt.Errorf("broken pipe")
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSession_DrainsInFIFOOrder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &recordingConn{}
	s := NewSession(slog.Default(), "alice", conn, 16, registry, nil)
	s.Activate()
	req.Equal(Active, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		s.Enqueue(chat.Message{Sender: "bob", Body: fmt.Sprintf("msg-%d", i)})
	}

	waitFor(t, func() bool { return len(conn.messages()) == 5 })
	for i, m := range conn.messages() {
		req.Equal(fmt.Sprintf("msg-%d", i), m.Body)
	}

	cancel()
	<-done
	req.Equal(Closed, s.State())
}

func TestSession_EnqueueNeverBlocksWhenFull(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	s := NewSession(slog.Default(), "alice", &recordingConn{}, 2, registry, nil)
	s.Activate()

	// No drain loop running: the queue saturates after 2 messages.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 10; i++ {
			s.Enqueue(chat.Message{Body: "x"})
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked the caller")
	}
	req.Equal(uint64(8), s.Dropped())
}

func TestSession_SendFailureClosesAndUnregisters(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &recordingConn{failAt: 2}
	s := NewSession(slog.Default(), "alice", conn, 16, registry, nil)
	s.Activate()
	req.Len(registry.SessionsFor("alice"), 1)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	s.Enqueue(chat.Message{Body: "first"})
	s.Enqueue(chat.Message{Body: "second"}) // this send fails

	// Run must return nil: a dead session is terminal, never restarted.
	req.NoError(<-done)
	req.Equal(Closed, s.State())
	req.Empty(registry.SessionsFor("alice"))
	req.True(conn.closed)
}

func TestSession_CloseStopsDrainLoop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &recordingConn{}
	s := NewSession(slog.Default(), "alice", conn, 16, registry, nil)
	s.Activate()

	// The drain loop runs under a context that stays live, as with a
	// server-wide context: Close alone must stop it.
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	s.Enqueue(chat.Message{Body: "delivered"})
	waitFor(t, func() bool { return len(conn.messages()) == 1 })

	s.Close()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("drain loop still running after Close")
	}
	req.Equal(Closed, s.State())
	req.Empty(registry.SessionsFor("alice"))
	req.True(conn.closed)
}

func TestSession_EnqueueAfterCloseIsDiscarded(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &recordingConn{}
	s := NewSession(slog.Default(), "alice", conn, 16, registry, nil)
	s.Activate()
	s.Close()

	s.Enqueue(chat.Message{Body: "late"})
	req.Empty(conn.messages())
	req.Equal(Closed, s.State())
}

func TestSession_NoTransitionOutOfClosed(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	s := NewSession(slog.Default(), "alice", &recordingConn{}, 4, registry, nil)
	s.Activate()
	s.Close()

	// Activate after close must not resurrect the session.
	s.Activate()
	req.Equal(Closed, s.State())
	req.Empty(registry.SessionsFor("alice"))
}
