package stream

import (
	"time"

	"github.com/fasthttp/websocket"
)

const wsWriteWait = 10 * time.Second

// WebSocketDialer is the production Dialer, wrapping the fasthttp websocket
// client (the same family the server side's fiber middleware builds on).
type WebSocketDialer struct {
	dialer *websocket.Dialer
}

func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{dialer: websocket.DefaultDialer}
}

func (d *WebSocketDialer) Dial(endpoint string) (Conn, error) {
	conn, _, err := d.dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, normalCloseError{err}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(normal bool) error {
	if normal {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}
	return c.conn.Close()
}

type normalCloseError struct{ err error }

func (e normalCloseError) Error() string { return e.err.Error() }
func (e normalCloseError) Unwrap() error { return e.err }
func (e normalCloseError) NormalClose() bool { return true }
