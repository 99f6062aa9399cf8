package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	"chat-relay/services"
)

// ChatHandler owns the websocket surface: each connection gets one
// session whose drain loop runs under the supervisor, while the handler
// goroutine itself is the inbound read pump.
type ChatHandler struct {
	log         *slog.Logger
	ctx         context.Context
	chatService services.IChatService
	registry    *runtime.Registry
	supervisor  contract.ISupervisor
	events      chan<- event.Event
	queueSize   int
	sendTimeout time.Duration
}

func NewChatHandler(log *slog.Logger, ctx context.Context,
	chatService services.IChatService, registry *runtime.Registry,
	supervisor contract.ISupervisor, events chan<- event.Event,
	queueSize int, sendTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		log:         log,
		ctx:         ctx,
		chatService: chatService,
		registry:    registry,
		supervisor:  supervisor,
		events:      events,
		queueSize:   queueSize,
		sendTimeout: sendTimeout,
	}
}

// Handle runs for the lifetime of one websocket connection. The identity
// was validated by the auth middleware before the upgrade; registration
// makes the session visible to fan-out, and the deferred close removes it
// synchronously on any exit path.
func (h *ChatHandler) Handle(c *websocket.Conn) {
	identity, ok := c.Locals(auth.UsernameKey).(string)
	if !ok || identity == "" {
		_ = c.Close()
		return
	}

	conn := newWSConn(c, h.sendTimeout)
	session := runtime.NewSession(h.log, identity, conn, h.queueSize, h.registry, h.events)
	session.Activate()
	defer session.Close()

	h.supervisor.Start(h.ctx, session)
	h.log.Info("session connected", "identity", identity, "session_id", session.ID)

	h.readPump(c, conn, identity)
	h.log.Info("session disconnected", "identity", identity, "session_id", session.ID)
}

// readPump decodes inbound frames into router calls. A persist failure is
// answered with an explicit error frame: the sender must be able to tell
// "sent" from "lost".
func (h *ChatHandler) readPump(c *websocket.Conn, conn *wsConn, identity string) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = conn.SendError("malformed frame")
			continue
		}

		switch frame.Kind {
		case KindPublic:
			m, err := h.chatService.PostPublic(h.ctx, chat.PostPublicCommand{
				Sender: identity,
				Body:   frame.Body,
			})
			if err != nil {
				_ = conn.SendError(err.Error())
				continue
			}
			_ = conn.SendAck(&m)

		case KindPrivate:
			err := h.chatService.PostPrivate(h.ctx, chat.PostPrivateCommand{
				Sender:   identity,
				Receiver: frame.To,
				Body:     frame.Body,
			})
			if err != nil {
				_ = conn.SendError(err.Error())
				continue
			}
			_ = conn.SendAck(nil)

		default:
			_ = conn.SendError("unknown frame kind")
		}
	}
}
