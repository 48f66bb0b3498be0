package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircreader"
)

// LineConn is the Connection Handle: one line-oriented link to the server.
// Lines are passed without the trailing CRLF.
type LineConn interface {
	// ReadLine blocks until a full line arrives or the link fails.
	ReadLine() (string, error)

	// WriteLine sends one line.
	WriteLine(line string) error

	// Close tears the link down. Safe to call more than once.
	Close() error
}

// Dialer opens a new LineConn for a session.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (LineConn, error)
}

// DialerFunc is a function adapter for Dialer.
type DialerFunc func(ctx context.Context, cfg Config) (LineConn, error)

func (f DialerFunc) Dial(ctx context.Context, cfg Config) (LineConn, error) {
	return f(ctx, cfg)
}

// NewDialer returns the Dialer for a transport name.
func NewDialer(transport string) (Dialer, error) {
	switch transport {
	case "", "tcp":
		return streamDialer{}, nil
	case "tls":
		return streamDialer{useTLS: true}, nil
	case "websocket":
		return wsDialer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

// streamDialer dials plain TCP or TLS.
type streamDialer struct {
	useTLS bool
}

func (d streamDialer) Dial(ctx context.Context, cfg Config) (LineConn, error) {
	nd := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	if d.useTLS {
		td := &tls.Dialer{
			NetDialer: nd,
			Config:    &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12},
		}
		conn, err = td.DialContext(ctx, "tcp", cfg.Addr())
	} else {
		conn, err = nd.DialContext(ctx, "tcp", cfg.Addr())
	}
	if err != nil {
		return nil, err
	}

	return NewStreamConn(conn, cfg.ReadTimeout, cfg.WriteTimeout), nil
}

// streamConn frames CRLF-terminated lines over a net.Conn.
type streamConn struct {
	conn         net.Conn
	reader       ircreader.Reader
	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewStreamConn wraps an established net.Conn. Zero timeouts disable deadlines.
func NewStreamConn(conn net.Conn, readTimeout, writeTimeout time.Duration) LineConn {
	c := &streamConn{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
	c.reader.Initialize(conn, 512, MaxLineBytes+2)
	return c
}

func (c *streamConn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	line, err := c.reader.ReadLine()
	if errors.Is(err, ircreader.ErrReadQ) {
		return "", fmt.Errorf("%w: %w", ErrLineTooLong, err)
	}
	if err != nil {
		return "", err
	}
	return string(line), nil
}

func (c *streamConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.conn.Write([]byte(line + "\r\n"))
	return err
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
