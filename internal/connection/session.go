package connection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"golang.org/x/time/rate"

	"github.com/rickgao/irc-ingest/internal/metrics"
)

// Numerics the session reacts to.
const (
	rplWelcome       = "001"
	errNicknameInUse = "433"
)

const quitMessage = "shutting down"

// Session is one registered IRC session over a single LineConn.
// A Session is never reused: the supervisor builds a new one per connection.
type Session struct {
	cfg     Config
	conn    LineConn
	handler EventHandler
	logger  *slog.Logger
	limiter *rate.Limiter

	mu       sync.RWMutex
	nick     string
	welcomed bool

	closeOnce sync.Once
}

// NewSession creates a session on an established connection.
func NewSession(cfg Config, conn LineConn, handler EventHandler, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = func(Event) {}
	}

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}

	return &Session{
		cfg:     cfg,
		conn:    conn,
		handler: handler,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
		nick:    cfg.Nickname,
	}
}

// Nick returns the nickname currently requested or confirmed by the server.
func (s *Session) Nick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

// Welcomed reports whether registration completed.
func (s *Session) Welcomed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.welcomed
}

// Run registers with the server and processes lines until the connection fails,
// the server closes the session, or ctx is cancelled. It always returns a non-nil
// error describing why the session ended.
func (s *Session) Run(ctx context.Context) error {
	// Cancellation closes the link, which unblocks ReadLine
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	if err := s.register(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("register: %w", err)
	}

	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		metrics.LinesReceived.Inc()

		if err := s.handleLine(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Close sends QUIT (best effort) and closes the connection. Idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if line, lerr := encode("QUIT", quitMessage); lerr == nil {
			s.conn.WriteLine(line)
		}
		err = s.conn.Close()
	})
	return err
}

// register sends PASS (when configured), NICK and USER.
func (s *Session) register(ctx context.Context) error {
	if s.cfg.Password != "" {
		if err := s.send(ctx, "PASS", s.cfg.Password); err != nil {
			return err
		}
	}
	if err := s.send(ctx, "NICK", s.Nick()); err != nil {
		return err
	}
	username := s.cfg.Username
	if username == "" {
		username = s.cfg.Nickname
	}
	realname := s.cfg.Realname
	if realname == "" {
		realname = s.cfg.Nickname
	}
	return s.send(ctx, "USER", username, "0", "*", realname)
}

// handleLine parses and reacts to one server line.
func (s *Session) handleLine(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		s.logger.Debug("ignoring malformed line", "error", err, "line", line)
		return nil
	}

	switch msg.Command {
	case "PING":
		// Keep-alive replies skip the send limiter
		return s.write("PONG", msg.Params...)

	case "ERROR":
		reason := ""
		if len(msg.Params) > 0 {
			reason = msg.Params[len(msg.Params)-1]
		}
		return fmt.Errorf("%w: %s", ErrServerClosed, reason)

	case errNicknameInUse:
		return s.onNicknameInUse(ctx)

	case rplWelcome:
		return s.onWelcome(ctx, msg)

	case "NICK":
		if len(msg.Params) > 0 && msg.Nick() == s.Nick() {
			s.mu.Lock()
			s.nick = msg.Params[0]
			s.mu.Unlock()
		}

	case "PRIVMSG":
		s.onPrivmsg(msg)
	}

	return nil
}

// onNicknameInUse appends '_' to the nickname and asks again.
func (s *Session) onNicknameInUse(ctx context.Context) error {
	s.mu.Lock()
	s.nick += "_"
	nick := s.nick
	s.mu.Unlock()

	metrics.NickCollisions.Inc()
	s.logger.Info("nickname in use, retrying", "nick", nick)

	return s.send(ctx, "NICK", nick)
}

// onWelcome marks registration complete and joins all configured channels.
func (s *Session) onWelcome(ctx context.Context, msg ircmsg.Message) error {
	s.mu.Lock()
	s.welcomed = true
	if len(msg.Params) > 0 && msg.Params[0] != "" {
		s.nick = msg.Params[0]
	}
	nick := s.nick
	s.mu.Unlock()

	metrics.Connected.Set(1)
	s.logger.Info("connected to server", "server", msg.Source, "nick", nick)

	for _, channel := range s.cfg.Channels {
		target := JoinTarget(channel)
		if err := s.send(ctx, "JOIN", target); err != nil {
			return fmt.Errorf("join %s: %w", target, err)
		}
		s.logger.Info("joined channel", "channel", target)
	}
	return nil
}

// onPrivmsg classifies a PRIVMSG and hands it to the handler.
func (s *Session) onPrivmsg(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}

	target := msg.Params[0]
	kind, args := classifyPrivmsg(target, msg.Params[1])

	if kind == KindDCCChatRequest {
		offer, ok := ParseDCCChat(args)
		if !ok {
			return
		}
		s.logger.Debug("dcc chat offer not accepted", "from", msg.Nick(), "address", offer.Address, "port", offer.Port)
	}

	metrics.EventsReceived.WithLabelValues(string(kind)).Inc()

	s.handler(Event{
		Kind:       kind,
		Source:     msg.Source,
		Nick:       msg.Nick(),
		Target:     target,
		Arguments:  args,
		ReceivedAt: time.Now(),
	})
}

// send writes a rate-limited command.
func (s *Session) send(ctx context.Context, command string, params ...string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.write(command, params...)
}

// write sends a command immediately.
func (s *Session) write(command string, params ...string) error {
	line, err := encode(command, params...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", command, err)
	}
	return s.conn.WriteLine(line)
}

// encode serializes a client command without the trailing CRLF.
func encode(command string, params ...string) (string, error) {
	msg := ircmsg.MakeMessage(nil, "", command, params...)
	line, err := msg.Line()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
