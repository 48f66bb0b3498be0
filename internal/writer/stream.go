package writer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/irc-ingest/internal/metrics"
	"github.com/rickgao/irc-ingest/internal/router"
)

// streamRecord is the JSON form of one routed event.
type streamRecord struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Channel     string    `json:"channel,omitempty"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"received_at"`
}

// StreamWriter writes every event from its queues to out as one JSON object per line.
// Lines from different destinations interleave; order within a destination is kept.
type StreamWriter struct {
	name   string
	logger *slog.Logger

	inputs map[string]*router.GrowableBuffer[router.Event]

	// Output, serialized across consumers
	outMu sync.Mutex
	enc   *json.Encoder

	consumers errgroup.Group

	statsMu sync.Mutex
	metrics WriterMetrics
}

// NewStreamWriter creates a StreamWriter. The name labels its metrics and logs.
// The caller owns out and closes it after Stop.
func NewStreamWriter(
	name string,
	out io.Writer,
	inputs map[string]*router.GrowableBuffer[router.Event],
	logger *slog.Logger,
) *StreamWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamWriter{
		name:   name,
		logger: logger.With("writer", name),
		inputs: inputs,
		enc:    json.NewEncoder(out),
	}
}

// Start launches one consumer per destination.
func (w *StreamWriter) Start(ctx context.Context) error {
	for name, q := range w.inputs {
		w.consumers.Go(func() error {
			w.consumeLoop(name, q)
			return nil
		})
	}

	w.logger.Info("stream writer started", "destinations", len(w.inputs))
	return nil
}

// Stop closes the input queues and waits until they are written out.
func (w *StreamWriter) Stop(ctx context.Context) error {
	for _, q := range w.inputs {
		q.Close()
	}

	done := make(chan struct{})
	go func() {
		w.consumers.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stream writer stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("stream writer drain timed out")
		return ctx.Err()
	}
}

// Stats returns current metrics.
func (w *StreamWriter) Stats() WriterMetrics {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.metrics
}

func (w *StreamWriter) consumeLoop(name string, q *router.GrowableBuffer[router.Event]) {
	for {
		ev, ok := q.Receive()
		if !ok {
			return
		}
		metrics.QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
		w.write(name, ev)
	}
}

func (w *StreamWriter) write(destination string, ev router.Event) {
	rec := streamRecord{
		ID:          ev.ID.String(),
		Destination: destination,
		Type:        ev.Kind(),
		Source:      ev.Source(),
		Channel:     ev.Channel(),
		Body:        ev.Body,
		ReceivedAt:  ev.ReceivedAt,
	}

	w.outMu.Lock()
	err := w.enc.Encode(rec)
	w.outMu.Unlock()

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if err != nil {
		w.metrics.Errors++
		metrics.WriteErrors.WithLabelValues(w.name).Inc()
		w.logger.Error("write event failed", "error", err, "destination", destination, "id", ev.ID)
		return
	}
	w.metrics.Written++
	metrics.EventsWritten.WithLabelValues(w.name, destination).Inc()
}
