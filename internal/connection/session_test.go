package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory LineConn driven by the test.
type fakeConn struct {
	lines  chan string
	writes chan string

	mu      sync.Mutex
	written []string

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		lines:  make(chan string, 100),
		writes: make(chan string, 100),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *fakeConn) WriteLine(line string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, line)
	c.mu.Unlock()
	select {
	case c.writes <- line:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

// send feeds a server line to the session.
func (c *fakeConn) send(line string) {
	c.lines <- line
}

// expectWrite waits for the next written line and checks it.
func (c *fakeConn) expectWrite(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.writes:
		if got != want {
			t.Fatalf("wrote %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for write %q", want)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Nickname = "bot"
	cfg.Username = "bot"
	cfg.Realname = "bot"
	cfg.Channels = []string{"general", "#Random"}
	cfg.ReconnectCooldown = 20 * time.Millisecond
	cfg.SendRate = 1000
	cfg.SendBurst = 100
	return cfg
}

// eventRecorder collects handler calls.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	notify chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan Event, 100)}
}

func (r *eventRecorder) Handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.notify <- ev
}

func (r *eventRecorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.notify:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func (r *eventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// startSession runs a session in the background and returns its result channel.
func startSession(t *testing.T, cfg Config, conn *fakeConn, handler EventHandler) (*Session, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sess := NewSession(cfg, conn, handler, nil)
	result := make(chan error, 1)
	go func() {
		result <- sess.Run(ctx)
	}()
	t.Cleanup(cancel)
	return sess, cancel, result
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session to end")
		return nil
	}
}

func TestSession_Register(t *testing.T) {
	cfg := testConfig()
	cfg.Password = "hunter2"
	conn := newFakeConn()

	startSession(t, cfg, conn, nil)

	conn.expectWrite(t, "PASS hunter2")
	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")
}

func TestSession_RegisterWithoutPassword(t *testing.T) {
	conn := newFakeConn()

	startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")
}

func TestSession_NicknameInUse(t *testing.T) {
	conn := newFakeConn()
	sess, _, _ := startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")

	conn.send(":irc.example.org 433 * bot :Nickname is already in use")
	conn.expectWrite(t, "NICK bot_")

	conn.send(":irc.example.org 433 * bot_ :Nickname is already in use")
	conn.expectWrite(t, "NICK bot__")

	if got := sess.Nick(); got != "bot__" {
		t.Errorf("Nick() = %q, want %q", got, "bot__")
	}
	if sess.Welcomed() {
		t.Error("Welcomed() = true before 001")
	}
}

func TestSession_WelcomeJoinsChannels(t *testing.T) {
	conn := newFakeConn()
	sess, _, _ := startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")

	conn.send(":irc.example.org 001 bot :Welcome to the network")
	conn.expectWrite(t, "JOIN #general")
	conn.expectWrite(t, "JOIN #Random")

	if !sess.Welcomed() {
		t.Error("Welcomed() = false after 001")
	}
}

func TestSession_WelcomeAfterCollisionKeepsServerNick(t *testing.T) {
	conn := newFakeConn()
	sess, _, _ := startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")
	conn.send(":irc.example.org 433 * bot :Nickname is already in use")
	conn.expectWrite(t, "NICK bot_")
	conn.send(":irc.example.org 001 bot_ :Welcome")
	conn.expectWrite(t, "JOIN #general")

	if got := sess.Nick(); got != "bot_" {
		t.Errorf("Nick() = %q, want %q", got, "bot_")
	}
}

func TestSession_PingPong(t *testing.T) {
	conn := newFakeConn()
	startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")

	conn.send("PING :irc.example.org")
	conn.expectWrite(t, "PONG irc.example.org")
}

func TestSession_PublicMessage(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	conn.send(":alice!al@example.org PRIVMSG #general :hi there")
	ev := rec.next(t)

	if ev.Kind != KindPublic {
		t.Errorf("Kind = %q, want %q", ev.Kind, KindPublic)
	}
	if ev.Source != "alice!al@example.org" {
		t.Errorf("Source = %q, want %q", ev.Source, "alice!al@example.org")
	}
	if ev.Nick != "alice" {
		t.Errorf("Nick = %q, want alice", ev.Nick)
	}
	if ev.Target != "#general" {
		t.Errorf("Target = %q, want #general", ev.Target)
	}
	if !reflect.DeepEqual(ev.Arguments, []string{"hi there"}) {
		t.Errorf("Arguments = %q, want [hi there]", ev.Arguments)
	}
	if ev.ReceivedAt.IsZero() {
		t.Error("ReceivedAt is zero")
	}
}

func TestSession_PrivateMessage(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	conn.send(":alice!al@example.org PRIVMSG bot :hello")
	ev := rec.next(t)

	if ev.Kind != KindPrivate {
		t.Errorf("Kind = %q, want %q", ev.Kind, KindPrivate)
	}
	if ev.Target != "bot" {
		t.Errorf("Target = %q, want bot", ev.Target)
	}
}

func TestSession_EventOrder(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	for _, text := range []string{"one", "two", "three"} {
		conn.send(":alice!al@example.org PRIVMSG #general :" + text)
	}
	for _, want := range []string{"one", "two", "three"} {
		ev := rec.next(t)
		if ev.Arguments[0] != want {
			t.Fatalf("got %q, want %q", ev.Arguments[0], want)
		}
	}
}

func TestSession_CTCP(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	conn.send(":alice!al@example.org PRIVMSG #general :\x01ACTION waves\x01")
	ev := rec.next(t)
	if ev.Kind != KindOther {
		t.Errorf("ACTION Kind = %q, want %q", ev.Kind, KindOther)
	}

	conn.send(":alice!al@example.org PRIVMSG bot :\x01DCC CHAT chat 3232235777 5000\x01")
	ev = rec.next(t)
	if ev.Kind != KindDCCChatRequest {
		t.Errorf("DCC Kind = %q, want %q", ev.Kind, KindDCCChatRequest)
	}
	if !reflect.DeepEqual(ev.Arguments, []string{"DCC", "CHAT chat 3232235777 5000"}) {
		t.Errorf("DCC Arguments = %q", ev.Arguments)
	}
}

func TestSession_MalformedDCCIgnored(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	conn.send(":alice!al@example.org PRIVMSG bot :\x01DCC CHAT chat\x01")
	conn.send(":alice!al@example.org PRIVMSG bot :after")

	ev := rec.next(t)
	if ev.Kind != KindPrivate || ev.Arguments[0] != "after" {
		t.Errorf("first event = %+v, want the private message after the malformed offer", ev)
	}
	if rec.Len() != 1 {
		t.Errorf("handler calls = %d, want 1", rec.Len())
	}
}

func TestSession_MissingTextIgnored(t *testing.T) {
	conn := newFakeConn()
	rec := newEventRecorder()
	startSession(t, testConfig(), conn, rec.Handle)

	conn.send(":alice!al@example.org PRIVMSG #general")
	conn.send("")
	conn.send(":alice!al@example.org PRIVMSG #general :ok")

	ev := rec.next(t)
	if ev.Arguments[0] != "ok" {
		t.Errorf("Arguments = %q, want [ok]", ev.Arguments)
	}
}

func TestSession_ServerError(t *testing.T) {
	conn := newFakeConn()
	_, _, result := startSession(t, testConfig(), conn, nil)

	conn.send("ERROR :Closing Link: bot (Ping timeout)")

	err := waitResult(t, result)
	if !errors.Is(err, ErrServerClosed) {
		t.Fatalf("Run() error = %v, want ErrServerClosed", err)
	}
	if !strings.Contains(err.Error(), "Ping timeout") {
		t.Errorf("error %q does not carry the server reason", err)
	}
}

func TestSession_ReadError(t *testing.T) {
	conn := newFakeConn()
	_, _, result := startSession(t, testConfig(), conn, nil)

	close(conn.lines)

	err := waitResult(t, result)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run() error = %v, want wrapped io.EOF", err)
	}
}

func TestSession_CancelQuits(t *testing.T) {
	conn := newFakeConn()
	_, cancel, result := startSession(t, testConfig(), conn, nil)

	conn.expectWrite(t, "NICK bot")
	conn.expectWrite(t, "USER bot 0 * bot")

	cancel()

	err := waitResult(t, result)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	conn.expectWrite(t, "QUIT :shutting down")
	if !conn.isClosed() {
		t.Error("connection not closed after cancel")
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	conn := newFakeConn()
	sess := NewSession(testConfig(), conn, nil, nil)

	sess.Close()
	sess.Close()

	quits := 0
	for _, line := range conn.Written() {
		if strings.HasPrefix(line, "QUIT") {
			quits++
		}
	}
	if quits != 1 {
		t.Errorf("QUIT sent %d times, want 1", quits)
	}
}
