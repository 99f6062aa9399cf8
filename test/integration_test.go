package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
)

// memConn is an in-process connection: a device without the websocket.
type memConn struct {
	mu       sync.Mutex
	received []chat.Message
}

func (c *memConn) Send(m chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, m)
	return nil
}

func (c *memConn) Close() error { return nil }

func (c *memConn) messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.received))
	copy(out, c.received)
	return out
}

type engine struct {
	router   *runtime.Router
	registry *runtime.Registry
	timeline *projection.Timeline
	sup      *workers.Supervisor
	events   chan event.Event
	log      *slog.Logger
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	req := require.New(t)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := slog.Default()
	repo, err := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	req.NoError(err)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	registry := runtime.NewRegistry()
	events := make(chan event.Event, 64)
	router := runtime.NewRouter(log, repo, registry, &moderator, events, 500)

	timeline := projection.NewTimeline(10)
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewEventFanout(log, events, timeline))

	ctx, cancel := context.WithCancel(context.Background())
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	t.Cleanup(func() {
		cancel()
		<-supDone
		_ = repo.Close()
		_ = db.Close()
	})

	return &engine{router: router, registry: registry, timeline: timeline,
		sup: sup, events: events, log: log}
}

// connect attaches a device for an identity and runs its drain loop under
// the supervisor, the same wiring the websocket handler performs.
func (e *engine) connect(t *testing.T, identity string) *memConn {
	t.Helper()
	conn := &memConn{}
	session := runtime.NewSession(e.log, identity, conn, 64, e.registry, e.events)
	session.Activate()

	ctx, cancel := context.WithCancel(context.Background())
	e.sup.Start(ctx, session)
	t.Cleanup(func() {
		cancel()
		session.Close()
	})
	return conn
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
	require.Fail(t, "condition never satisfied")
}

func Test_Scenario_PublicBroadcast(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	ctx := context.Background()

	aliceLaptop := e.connect(t, "alice")
	alicePhone := e.connect(t, "alice")
	bob := e.connect(t, "bob")

	// When a public message is posted from one of alice's devices
	posted, err := e.router.AcceptPublic(ctx, "alice", "hello room")
	req.NoError(err)

	// Then every connected device receives it, the sender's own included
	for _, conn := range []*memConn{aliceLaptop, alicePhone, bob} {
		waitFor(t, func() bool { return len(conn.messages()) == 1 })
		req.Equal(posted.ID, conn.messages()[0].ID)
	}

	// And the public feed history matches what was delivered live
	history, err := e.router.FetchHistory("alice", chat.PublicReceiver)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hello room", history[0].Body)

	// And the projection caught the event
	waitFor(t, func() bool { return len(e.timeline.Recent()) == 1 })
}

func Test_Scenario_PrivateTwoDevices(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	ctx := context.Background()

	aliceLaptop := e.connect(t, "alice")
	bobLaptop := e.connect(t, "bob")
	bobPhone := e.connect(t, "bob")
	clara := e.connect(t, "clara")

	req.NoError(e.router.SendPrivate(ctx, "alice", "bob", "just for you"))

	// Both of bob's devices receive the message exactly once
	waitFor(t, func() bool {
		return len(bobLaptop.messages()) == 1 && len(bobPhone.messages()) == 1
	})

	// The sender's device and third parties never see it
	time.Sleep(50 * time.Millisecond)
	req.Empty(aliceLaptop.messages())
	req.Empty(clara.messages())

	// The pair conversation holds it, queried from either side
	fromAlice, err := e.router.FetchHistory("alice", "bob")
	req.NoError(err)
	fromBob, err := e.router.FetchHistory("bob", "alice")
	req.NoError(err)
	req.Equal(fromAlice, fromBob)
	req.Len(fromAlice, 1)
}

func Test_Scenario_OfflineReceiverCatchesUpFromHistory(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	ctx := context.Background()

	// Nobody is connected when alice writes to clara
	req.NoError(e.router.SendPrivate(ctx, "alice", "clara", "see you monday"))

	// Clara connects afterwards: no live replay happens
	claraConn := e.connect(t, "clara")
	time.Sleep(50 * time.Millisecond)
	req.Empty(claraConn.messages())

	// The message is in history, exactly once, and re-reading changes nothing
	first, err := e.router.FetchHistory("clara", "alice")
	req.NoError(err)
	req.Len(first, 1)
	req.Equal("see you monday", first[0].Body)

	second, err := e.router.FetchHistory("clara", "alice")
	req.NoError(err)
	req.Equal(first, second)
}

func Test_Scenario_ModerationAppliesBeforeDeliveryAndHistory(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	ctx := context.Background()

	bob := e.connect(t, "bob")

	posted, err := e.router.AcceptPublic(ctx, "alice", "release the badger")
	req.NoError(err)
	req.Equal("release the ******", posted.Body)

	waitFor(t, func() bool { return len(bob.messages()) == 1 })
	req.Equal("release the ******", bob.messages()[0].Body)

	history, err := e.router.FetchHistory("alice", chat.PublicReceiver)
	req.NoError(err)
	req.Equal("release the ******", history[0].Body)
}

func Test_Scenario_HistoryOrderSurvivesConcurrentSenders(t *testing.T) {
	req := require.New(t)
	e := newEngine(t)
	ctx := context.Background()

	const senders = 5
	const perSender = 10

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := e.router.AcceptPublic(ctx, "alice", "tick")
				req.NoError(err)
			}
		}()
	}
	wg.Wait()

	history, err := e.router.FetchHistory("alice", chat.PublicReceiver)
	req.NoError(err)
	req.Len(history, senders*perSender)
	for i := 1; i < len(history); i++ {
		req.False(history[i].At.Before(history[i-1].At))
	}
}
