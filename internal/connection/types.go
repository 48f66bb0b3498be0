package connection

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// Errors
var (
	ErrAlreadyStarted   = errors.New("supervisor already started")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrServerClosed     = errors.New("server closed the session")
	ErrHandlerPanic     = errors.New("event handler panicked")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrLineTooLong      = errors.New("line exceeds maximum length")
)

// MaxLineBytes bounds one inbound line: 512 bytes of message plus the
// 8191-byte IRCv3 tag budget.
const MaxLineBytes = 512 + 8191

// EventKind classifies an inbound protocol event.
type EventKind string

const (
	KindPublic         EventKind = "public"
	KindPrivate        EventKind = "private"
	KindNickCollision  EventKind = "nick-collision"
	KindDCCChatRequest EventKind = "dcc-chat-request"
	KindDCCMessage     EventKind = "dcc-message"
	KindOther          EventKind = "other"
)

// Event is one message received from the server, as handed to the Message Router.
type Event struct {
	Kind       EventKind
	Source     string   // Full prefix, e.g. "alice!al@example.org"
	Nick       string   // Nick part of Source (empty for server-originated events)
	Target     string   // Channel for public events, our nick for private ones
	Arguments  []string // Message text, in protocol order
	ReceivedAt time.Time
}

// EventHandler receives inbound events on the network goroutine.
// It must not block.
type EventHandler func(Event)

// Config is the Session Configuration. It is not modified after NewSupervisor.
type Config struct {
	Server            string
	Port              int
	Transport         string // "tcp", "tls" or "websocket"
	WebSocketURL      string
	Nickname          string
	Username          string
	Realname          string
	Password          string
	Channels          []string
	ReconnectCooldown time.Duration // Fixed wait between sessions, no backoff
	DialTimeout       time.Duration
	ReadTimeout       time.Duration // Max silence before the session is considered dead
	WriteTimeout      time.Duration
	SendRate          float64 // Outbound lines per second
	SendBurst         int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server:            "localhost",
		Port:              6667,
		Transport:         "tcp",
		Nickname:          "wishbone",
		Username:          "wishbone",
		Realname:          "wishbone",
		Channels:          []string{"wishbone"},
		ReconnectCooldown: 1 * time.Second,
		DialTimeout:       10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Second,
		SendRate:          2,
		SendBurst:         5,
	}
}

// Addr returns host:port for stream transports.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// JoinTarget returns the channel name as sent in JOIN, adding '#' when missing.
func JoinTarget(channel string) string {
	if !strings.HasPrefix(channel, "#") {
		return "#" + channel
	}
	return channel
}

// IsChannel reports whether a PRIVMSG target names a channel.
func IsChannel(target string) bool {
	return target != "" && strings.ContainsRune("#&+!", rune(target[0]))
}

// Stats provides statistics about the supervisor.
type Stats struct {
	Connected   bool      `json:"connected"`
	Nick        string    `json:"nick"`
	Sessions    int64     `json:"sessions"`
	Reconnects  int64     `json:"reconnects"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}
