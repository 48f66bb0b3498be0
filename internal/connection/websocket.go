package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ircv3Subprotocol carries one UTF-8 IRC line per text frame, without CRLF.
const ircv3Subprotocol = "text.ircv3.net"

// wsDialer dials IRC over WebSocket.
type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, cfg Config) (LineConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
		Subprotocols:     []string{ircv3Subprotocol},
	}

	conn, _, err := dialer.DialContext(ctx, cfg.WebSocketURL, nil)
	if err != nil {
		return nil, err
	}
	// Frames may still carry the CRLF
	conn.SetReadLimit(MaxLineBytes + 2)

	return &wsConn{
		conn:         conn,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}, nil
}

// wsConn adapts a WebSocket connection to LineConn.
type wsConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, data, err := c.conn.ReadMessage()
	if errors.Is(err, websocket.ErrReadLimit) {
		return "", fmt.Errorf("%w: %w", ErrLineTooLong, err)
	}
	if err != nil {
		return "", err
	}
	// Some servers still terminate frames with CRLF
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (c *wsConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
