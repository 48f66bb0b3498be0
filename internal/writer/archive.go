package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/irc-ingest/internal/metrics"
	"github.com/rickgao/irc-ingest/internal/router"
)

const archiveWriterName = "archive"

// BatchSender is the part of *pgxpool.Pool the archive writer needs.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ArchiveWriter consumes events from destination queues and writes them to the irc_events table.
type ArchiveWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the Message Router, keyed by destination
	inputs map[string]*router.GrowableBuffer[router.Event]

	// Database
	db BatchSender

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	consumers errgroup.Group
	flusher   sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewArchiveWriter creates a new ArchiveWriter.
func NewArchiveWriter(
	cfg WriterConfig,
	inputs map[string]*router.GrowableBuffer[router.Event],
	db BatchSender,
	logger *slog.Logger,
) *ArchiveWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &ArchiveWriter{
		cfg:    cfg,
		inputs: inputs,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
// Only Stop ends the writer; cancelling ctx does not, so queued events still
// reach the database during shutdown.
func (w *ArchiveWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	for name, q := range w.inputs {
		w.consumers.Go(func() error {
			w.consumeLoop(name, q)
			return nil
		})
	}

	w.flusher.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"destinations", len(w.inputs),
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input queues, waits for them to drain and flushes what is left.
// If ctx expires first, in-flight inserts are cancelled and the events still
// queued are counted as abandoned.
func (w *ArchiveWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	for _, q := range w.inputs {
		q.Close()
	}

	done := make(chan struct{})
	go func() {
		w.consumers.Wait()
		close(done)
	}()

	var stopErr error
	select {
	case <-done:
	case <-ctx.Done():
		abandoned := w.pending()
		w.batchMu.Lock()
		w.metrics.Abandoned += int64(abandoned)
		w.batchMu.Unlock()
		w.logger.Warn("archive writer drain timed out", "abandoned", abandoned)
		stopErr = fmt.Errorf("archive writer: %d events abandoned: %w", abandoned, ctx.Err())
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.flusher.Wait()

	if stopErr != nil {
		return stopErr
	}

	// Final flush
	w.flush(ctx)

	w.logger.Info("archive writer stopped")
	return nil
}

// pending counts events still queued or batched. The batch is emptied so a
// consumer that is still running cannot flush it after Stop gives up.
func (w *ArchiveWriter) pending() int {
	n := 0
	for _, q := range w.inputs {
		n += q.Len()
	}
	w.batchMu.Lock()
	n += len(w.batch)
	w.batch = w.batch[:0]
	w.batchMu.Unlock()
	return n
}

// Stats returns current metrics.
func (w *ArchiveWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads one queue a batch at a time until it is closed and empty,
// or the writer is cancelled.
func (w *ArchiveWriter) consumeLoop(name string, q *router.GrowableBuffer[router.Event]) {
	for {
		evs, ok := q.ReceiveBatch(w.cfg.BatchSize)
		if !ok || w.ctx.Err() != nil {
			return
		}
		metrics.QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
		w.handleEvents(name, evs)
	}
}

// flushLoop periodically flushes the batch.
func (w *ArchiveWriter) flushLoop() {
	defer w.flusher.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleEvents adds events to the batch and flushes when it is full.
func (w *ArchiveWriter) handleEvents(destination string, evs []router.Event) {
	w.batchMu.Lock()
	for _, ev := range evs {
		w.batch = append(w.batch, toRow(destination, ev))
	}
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *ArchiveWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		metrics.WriteErrors.WithLabelValues(archiveWriterName).Inc()
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	for _, r := range batch {
		metrics.EventsWritten.WithLabelValues(archiveWriterName, r.Destination).Inc()
	}

	w.batchMu.Lock()
	w.metrics.Written += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// Replays of the same event to the same destination are counted as conflicts.
func (w *ArchiveWriter) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO irc_events (id, destination, kind, source, channel, body, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id, destination) DO NOTHING
		`, r.ID, r.Destination, r.Kind, r.Source, r.Channel, r.Body, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
