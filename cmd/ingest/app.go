package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rickgao/irc-ingest/internal/config"
	"github.com/rickgao/irc-ingest/internal/connection"
	"github.com/rickgao/irc-ingest/internal/database"
	"github.com/rickgao/irc-ingest/internal/logging"
	"github.com/rickgao/irc-ingest/internal/router"
	"github.com/rickgao/irc-ingest/internal/server"
	"github.com/rickgao/irc-ingest/internal/version"
	"github.com/rickgao/irc-ingest/internal/writer"
)

const shutdownTimeout = 30 * time.Second

// connectionConfig converts the file form of the session settings.
func connectionConfig(c config.IRCConfig) connection.Config {
	return connection.Config{
		Server:            c.Server,
		Port:              c.Port,
		Transport:         c.Transport,
		WebSocketURL:      c.WebSocketURL,
		Nickname:          c.Nickname,
		Username:          c.Username,
		Realname:          c.Realname,
		Password:          c.Password,
		Channels:          append([]string(nil), c.Channels...),
		ReconnectCooldown: c.ReconnectCooldown,
		DialTimeout:       c.DialTimeout,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		SendRate:          c.SendRate,
		SendBurst:         c.SendBurst,
	}
}

// namedWriter pairs a writer with the name it reports under.
type namedWriter struct {
	name string
	w    interface {
		writer.Writer
		Stats() writer.WriterMetrics
	}
}

// lifecycle is the Start/Stop contract shared by writers, the admin server and the supervisor.
type lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type component struct {
	name string
	c    lifecycle
}

// startAll starts components in order. If one fails, those already running
// are stopped in reverse order before the error is returned.
func startAll(ctx context.Context, components []component, logger *slog.Logger) error {
	for i, comp := range components {
		err := comp.c.Start(ctx)
		if err == nil {
			continue
		}

		stopCtx, cancel := shutdownContext()
		defer cancel()
		for j := i - 1; j >= 0; j-- {
			if serr := components[j].c.Stop(stopCtx); serr != nil {
				logger.Warn("stop after failed start", "component", components[j].name, "error", serr)
			}
		}
		return fmt.Errorf("start %s: %w", comp.name, err)
	}
	return nil
}

// runIngest wires every component, runs until ctx is cancelled and shuts down
// in dependency order: supervisor, queues, writers, admin server, database.
// Routed events streamed to stdout; logs go to console.
func runIngest(ctx context.Context, cfg *config.IngestConfig, stdout, console io.Writer) error {
	log, err := logging.New(cfg.Logging, console)
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.Logger
	slog.SetDefault(logger)

	logger.Info("starting ingest",
		"version", version.Version,
		"commit", version.Commit,
	)

	// Destinations exist before the first JOIN
	reg, err := router.NewRegistry(cfg.IRC.Channels, cfg.IRC.Nickname, cfg.Queues.BufferSize)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	rt := router.New(reg, logger)

	logger.Info("destinations registered", "names", reg.Names())

	var (
		writers []namedWriter
		claimed []map[string]*router.GrowableBuffer[router.Event]
		pool    *pgxpool.Pool
	)

	if cfg.Output.Stream.Enabled {
		inputs, err := writer.Inputs(reg, cfg.Output.Stream.Destinations)
		if err != nil {
			return fmt.Errorf("output.stream: %w", err)
		}
		out := stdout
		if cfg.Output.Stream.Path != "" {
			file := &lumberjack.Logger{
				Filename:   cfg.Output.Stream.Path,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAge:     cfg.Logging.MaxAgeDays,
				Compress:   cfg.Logging.Compress,
			}
			defer file.Close()
			out = file
		}
		claimed = append(claimed, inputs)
		writers = append(writers, namedWriter{"stream", writer.NewStreamWriter("stream", out, inputs, logger)})
	}

	if cfg.Output.Archive.Enabled {
		inputs, err := writer.Inputs(reg, cfg.Output.Archive.Destinations)
		if err != nil {
			return fmt.Errorf("output.archive: %w", err)
		}

		dbCfg := cfg.Output.Archive.Database
		logger.Info("connecting to database",
			"host", dbCfg.Host,
			"port", dbCfg.Port,
			"database", dbCfg.Name,
		)
		pool, err = database.Connect(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		wcfg := writer.WriterConfig{
			BatchSize:     cfg.Output.Archive.BatchSize,
			FlushInterval: cfg.Output.Archive.FlushInterval,
		}
		claimed = append(claimed, inputs)
		writers = append(writers, namedWriter{"archive", writer.NewArchiveWriter(wcfg, inputs, pool, logger)})
	}

	// Queues nobody reads would grow forever
	if rest := writer.Unclaimed(reg, claimed...); len(rest) > 0 {
		writers = append(writers, namedWriter{"discard", writer.NewStreamWriter("discard", io.Discard, rest, logger)})
	}

	dialer, err := connection.NewDialer(cfg.IRC.Transport)
	if err != nil {
		return err
	}
	sup := connection.NewSupervisor(connectionConfig(cfg.IRC), dialer, rt.Handle, logger)

	sources := server.Sources{
		Connection: sup,
		Router:     rt,
		Writers:    make(map[string]server.WriterStats, len(writers)),
	}
	for _, nw := range writers {
		sources.Writers[nw.name] = nw.w
	}
	admin := server.New(cfg.Metrics, sources, logger)

	// Start consumers first so nothing queues up unread
	components := make([]component, 0, len(writers)+2)
	for _, nw := range writers {
		components = append(components, component{nw.name + " writer", nw.w})
	}
	components = append(components,
		component{"admin server", admin},
		component{"supervisor", sup},
	)
	if err := startAll(ctx, components, logger); err != nil {
		reg.Close()
		return err
	}

	logger.Info("ingest running",
		"addr", connectionConfig(cfg.IRC).Addr(),
		"transport", cfg.IRC.Transport,
		"writers", len(writers),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := shutdownContext()
	defer cancel()

	if err := sup.Stop(shutdownCtx); err != nil {
		logger.Warn("supervisor stop", "error", err)
	}

	// Closing the queues lets each writer drain what was routed and exit
	reg.Close()

	var g errgroup.Group
	for _, nw := range writers {
		g.Go(func() error {
			if err := nw.w.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("stop %s writer: %w", nw.name, err)
			}
			return nil
		})
	}
	stopErr := g.Wait()

	if err := admin.Stop(shutdownCtx); err != nil {
		logger.Warn("admin server stop", "error", err)
	}

	st := rt.Stats()
	logger.Info("ingest stopped",
		"received", st.Received,
		"routed", st.Routed,
		"dropped", st.Dropped,
	)
	return stopErr
}
