package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"chat-relay/domain/chat"
)

// wsConn adapts a websocket connection to the session's transport handle.
// Frame encoding and the bounded write deadline live here: a deadline
// violation surfaces to the session as a send failure, which closes it.
//
// The mutex serializes the drain loop's deliveries with control frames
// written from the read path (acks, rejections).
type wsConn struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	sendTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, sendTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, sendTimeout: sendTimeout}
}

func (c *wsConn) Send(m chat.Message) error {
	return c.write(OutboundFrame{Kind: KindMessage, Message: &m})
}

func (c *wsConn) SendAck(m *chat.Message) error {
	return c.write(OutboundFrame{Kind: KindAck, Message: m})
}

func (c *wsConn) SendError(msg string) error {
	return c.write(OutboundFrame{Kind: KindError, Error: msg})
}

func (c *wsConn) write(frame OutboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
