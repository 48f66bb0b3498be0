package connection

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server speaking the IRCv3 text subprotocol.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin:  func(r *http.Request) bool { return true },
		Subprotocols: []string{ircv3Subprotocol},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestNewDialer(t *testing.T) {
	for _, transport := range []string{"", "tcp", "tls", "websocket"} {
		if _, err := NewDialer(transport); err != nil {
			t.Errorf("NewDialer(%q) error = %v", transport, err)
		}
	}
	if _, err := NewDialer("carrier-pigeon"); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("NewDialer(carrier-pigeon) error = %v, want ErrUnknownTransport", err)
	}
}

func TestWebSocket_LineRoundTrip(t *testing.T) {
	received := make(chan string, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
		conn.WriteMessage(websocket.TextMessage, []byte("PING :irc.example.org\r\n"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.Transport = "websocket"
	cfg.WebSocketURL = wsURL(server)

	dialer, err := NewDialer(cfg.Transport)
	if err != nil {
		t.Fatalf("NewDialer failed: %v", err)
	}
	conn, err := dialer.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteLine("NICK bot"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "NICK bot" {
			t.Errorf("server received %q, want %q", msg, "NICK bot")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server to receive line")
	}

	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "PING :irc.example.org" {
		t.Errorf("ReadLine = %q, want CRLF trimmed", line)
	}
}

func TestWebSocket_CloseIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.WebSocketURL = wsURL(server)

	conn, err := wsDialer{}.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	conn.Close()
	conn.Close()

	if _, err := conn.ReadLine(); err == nil {
		t.Error("ReadLine after Close should fail")
	}
}

func TestWebSocket_DialFailure(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocketURL = "ws://127.0.0.1:1/irc"
	cfg.DialTimeout = 500 * time.Millisecond

	if _, err := (wsDialer{}).Dial(context.Background(), cfg); err == nil {
		t.Error("expected dial error")
	}
}

func TestStreamConn_Lines(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewStreamConn(client, time.Second, time.Second)
	defer conn.Close()

	go func() {
		server.Write([]byte(":irc.example.org 001 bot :Welcome\r\nPING :x\n"))
	}()

	for _, want := range []string{":irc.example.org 001 bot :Welcome", "PING :x"} {
		got, err := conn.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if got != want {
			t.Errorf("ReadLine = %q, want %q", got, want)
		}
	}

	go func() {
		conn.WriteLine("PONG x")
	}()

	got, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("server read failed: %v", err)
	}
	if got != "PONG x\r\n" {
		t.Errorf("server read %q, want CRLF-terminated line", got)
	}
}

func TestStreamConn_ReadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewStreamConn(client, 50*time.Millisecond, 0)
	defer conn.Close()

	_, err := conn.ReadLine()
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("ReadLine error = %v, want timeout", err)
	}
}

func TestStreamConn_LineTooLong(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewStreamConn(client, time.Second, time.Second)

	go func() {
		server.Write([]byte(strings.Repeat("a", 8<<20) + "\r\n"))
	}()

	line, err := conn.ReadLine()
	conn.Close()
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("ReadLine() = %d bytes, error %v, want ErrLineTooLong", len(line), err)
	}
}

func TestStreamConn_MaxLengthLineAccepted(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewStreamConn(client, time.Second, time.Second)
	defer conn.Close()

	want := strings.Repeat("a", MaxLineBytes)
	go func() {
		server.Write([]byte(want + "\r\n"))
	}()

	got, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if got != want {
		t.Errorf("ReadLine returned %d bytes, want %d", len(got), len(want))
	}
}

func TestSession_LineTooLongEndsSession(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Swallow registration, then send a line with no end
	go io.Copy(io.Discard, server)
	go func() {
		server.Write([]byte(strings.Repeat("x", 64<<10)))
	}()

	sess := NewSession(testConfig(), NewStreamConn(client, time.Second, time.Second), nil, nil)
	result := make(chan error, 1)
	go func() {
		result <- sess.Run(context.Background())
	}()

	err := waitResult(t, result)
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("Run() error = %v, want ErrLineTooLong", err)
	}
}

func TestWebSocket_FrameTooLong(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("a", 2*MaxLineBytes)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testConfig()
	cfg.Transport = "websocket"
	cfg.WebSocketURL = wsURL(server)

	dialer, _ := NewDialer(cfg.Transport)
	conn, err := dialer.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ReadLine(); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("ReadLine error = %v, want ErrLineTooLong", err)
	}
}
