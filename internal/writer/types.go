package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/irc-ingest/internal/router"
)

// Writer is a queue consumer with a start/stop lifecycle.
type Writer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// WriterConfig holds batching configuration.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
	}
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Written   int64 `json:"written"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
	Abandoned int64 `json:"abandoned"` // Left unwritten when Stop timed out
}

// Inputs maps destination names to their queues. Names are matched exactly
// first and then as channel names, so "#Go" finds the "go" destination.
func Inputs(reg *router.Registry, names []string) (map[string]*router.GrowableBuffer[router.Event], error) {
	out := make(map[string]*router.GrowableBuffer[router.Event], len(names))
	for _, name := range names {
		key := name
		q, ok := reg.Lookup(key)
		if !ok {
			key = router.NormalizeChannel(name)
			q, ok = reg.Lookup(key)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", router.ErrUnknownDestination, name)
		}
		out[key] = q
	}
	return out, nil
}

// Unclaimed returns the queues of every destination not present in claimed.
func Unclaimed(reg *router.Registry, claimed ...map[string]*router.GrowableBuffer[router.Event]) map[string]*router.GrowableBuffer[router.Event] {
	out := make(map[string]*router.GrowableBuffer[router.Event])
	for _, name := range reg.Names() {
		taken := false
		for _, c := range claimed {
			if _, ok := c[name]; ok {
				taken = true
				break
			}
		}
		if !taken {
			q, _ := reg.Lookup(name)
			out[name] = q
		}
	}
	return out
}

// eventRow represents a row to be inserted into the irc_events table.
type eventRow struct {
	ID          string // UUID, shared by fan-out copies
	Destination string
	Kind        string
	Source      string
	Channel     string // Empty for private messages
	Body        string
	ReceivedAt  time.Time
}

func toRow(destination string, ev router.Event) eventRow {
	return eventRow{
		ID:          ev.ID.String(),
		Destination: destination,
		Kind:        ev.Kind(),
		Source:      ev.Source(),
		Channel:     ev.Channel(),
		Body:        ev.Body,
		ReceivedAt:  ev.ReceivedAt,
	}
}
