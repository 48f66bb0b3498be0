package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/irc-ingest/internal/metrics"
)

// Supervisor keeps one IRC session alive and restarts it after any fault.
type Supervisor struct {
	cfg     Config
	dialer  Dialer
	handler EventHandler
	logger  *slog.Logger

	// Lifecycle
	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Active session, nil between sessions
	sessionMu sync.RWMutex
	session   *Session

	// Stats
	sessions    atomic.Int64
	reconnects  atomic.Int64
	errMu       sync.RWMutex
	lastErr     error
	lastErrTime time.Time
}

// NewSupervisor creates a supervisor. The handler is called on the network
// goroutine for every public and private message, in arrival order.
func NewSupervisor(cfg Config, dialer Dialer, handler EventHandler, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = func(Event) {}
	}

	return &Supervisor{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the supervised run loop in the background. It can only be called once.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrAlreadyClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx)

	s.logger.Info("connection supervisor started",
		"addr", s.cfg.Addr(),
		"transport", s.cfg.Transport,
		"nick", s.cfg.Nickname,
		"channels", len(s.cfg.Channels),
	)
	return nil
}

// Stop ends the run loop, quits the active session and waits for the loop to exit.
// Safe to call more than once.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		close(s.done)
		return nil
	}

	s.logger.Info("stopping connection supervisor")
	cancel()

	select {
	case <-s.done:
		s.logger.Info("connection supervisor stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("connection supervisor stop timed out")
		return ctx.Err()
	}
}

// Done is closed once the run loop has exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Stats returns current statistics.
func (s *Supervisor) Stats() Stats {
	st := Stats{
		Nick:       s.cfg.Nickname,
		Sessions:   s.sessions.Load(),
		Reconnects: s.reconnects.Load(),
	}

	s.sessionMu.RLock()
	if s.session != nil {
		st.Connected = s.session.Welcomed()
		st.Nick = s.session.Nick()
	}
	s.sessionMu.RUnlock()

	s.errMu.RLock()
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		st.LastErrorAt = s.lastErrTime
	}
	s.errMu.RUnlock()

	return st
}

// run is the supervision loop. Every session fault is logged and followed by a
// fixed cooldown; only cancellation ends the loop.
func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.runSession(ctx)
		if ctx.Err() != nil {
			return
		}

		s.recordError(err)
		metrics.SessionFailures.Inc()
		s.logger.Error("irc session failed",
			"error", err,
			"cooldown", s.cfg.ReconnectCooldown,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectCooldown):
		}

		s.reconnects.Add(1)
		s.logger.Info("attempting reconnection", "addr", s.cfg.Addr())
	}
}

// runSession dials, runs one session to completion and tears it down.
// Panics raised by event handlers end the session like any other fault.
func (s *Supervisor) runSession(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	s.sessions.Add(1)
	metrics.Sessions.Inc()

	dialCtx := ctx
	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}

	conn, err := s.dialer.Dial(dialCtx, s.cfg)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Addr(), err)
	}

	sess := NewSession(s.cfg, conn, s.handler, s.logger)
	s.setSession(sess)
	defer func() {
		s.setSession(nil)
		sess.Close()
		metrics.Connected.Set(0)
	}()

	return sess.Run(ctx)
}

func (s *Supervisor) setSession(sess *Session) {
	s.sessionMu.Lock()
	s.session = sess
	s.sessionMu.Unlock()
}

func (s *Supervisor) recordError(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.lastErrTime = time.Now()
	s.errMu.Unlock()
}
