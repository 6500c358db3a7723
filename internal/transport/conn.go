// Package transport accepts client connections over WebSocket (with a
// WebTransport alternative for HTTP/3 clients), authenticates them,
// attaches them to the owning workspace's connection set, and feeds
// inbound frames to the dispatcher. It also serves the REST surface.
package transport

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/quic-go/webtransport-go"
)

// WebSocket close codes from spec.md §6.1.
const (
	closeAuthFailed    = 4001
	closeConnectionCap = 4003
	closeGoingAway     = websocket.CloseGoingAway // 1001, server shutdown
)

// wsConn adapts a gorilla connection to connset.Conn. Writes are
// serialized: gorilla permits one concurrent writer only.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeGoingAway, "going away"))
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// closeWithCode sends a close frame with an application code and drops
// the connection (auth failure, connection cap).
func (c *wsConn) closeWithCode(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.mu.Unlock()
	_ = c.conn.Close()
}

// wtConn adapts a WebTransport session to connset.Conn. Server
// messages go out on a single server-opened stream as newline-delimited
// JSON; inbound frames arrive on client-opened streams.
type wtConn struct {
	session *webtransport.Session
	out     io.WriteCloser
	mu      sync.Mutex
	remote  string
}

func (c *wtConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.out.Write(data); err != nil {
		return err
	}
	_, err := c.out.Write([]byte{'\n'})
	return err
}

func (c *wtConn) Close() error {
	_ = c.out.Close()
	return c.session.CloseWithError(0, "going away")
}

func (c *wtConn) RemoteAddr() string {
	return c.remote
}
