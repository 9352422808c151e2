package ws

import (
	"time"

	"roomchat/internal/presence"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn pairs a socket with its presence handle. The write pump is
// the only goroutine that writes to rawConn.
type clientConn struct {
	rawConn *websocket.Conn
	member  *presence.Member
}

func newClientConn(raw *websocket.Conn, m *presence.Member) *clientConn {
	return &clientConn{rawConn: raw, member: m}
}

// reply queues a frame for this connection only.
func (c *clientConn) reply(event string, body any) {
	if msg := encode(event, body); msg != nil {
		_ = c.member.TrySend(msg)
	}
}

// readLoop feeds every text frame to handle until the socket fails, then
// closes the member so the write pump stops too.
func (c *clientConn) readLoop(handle func(data []byte)) {
	defer c.member.Close()

	c.rawConn.SetReadLimit(maxMessageSize)
	_ = c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("member", c.member.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.member.Done():
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.rawConn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.member.Outbound():
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.member.Close()
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.member.Close()
				return
			}
		}
	}
}
