package router

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/irc-ingest/internal/connection"
	"github.com/rickgao/irc-ingest/internal/metrics"
)

// Router maps inbound events to destination queues. Dispatch runs on the
// connection supervisor's goroutine and never blocks.
type Router struct {
	registry *Registry
	logger   *slog.Logger

	// Stats
	received atomic.Int64
	routed   atomic.Int64
	dropped  atomic.Int64
	ignored  atomic.Int64
}

// New creates a Router over a fully built registry.
func New(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// Normalize builds the outbound form of an inbound event. The channel
// annotation is added by Dispatch for public events only.
func Normalize(ev connection.Event) Event {
	return Event{
		ID:         uuid.New(),
		Body:       strings.Join(ev.Arguments, "\n"),
		ReceivedAt: ev.ReceivedAt,
		Annotations: map[string]string{
			AnnotationType:   string(ev.Kind),
			AnnotationSource: ev.Source,
		},
	}
}

// Dispatch routes one inbound event.
//
// Public messages go to their channel destination and the outbox. Private
// messages go to the private destination and the outbox. Every other kind is
// ignored. A public message for a channel with no destination is dropped
// entirely and ErrUnknownDestination is returned.
func (r *Router) Dispatch(ev connection.Event) error {
	r.received.Add(1)

	var (
		name  string
		queue *GrowableBuffer[Event]
		out   Event
	)

	switch ev.Kind {
	case connection.KindPublic:
		out = Normalize(ev)
		name = NormalizeChannel(ev.Target)
		out.Annotations[AnnotationChannel] = name

		q, ok := r.registry.Channel(name)
		if !ok {
			r.drop("unknown_destination")
			r.logger.Error("no destination for channel",
				"channel", name,
				"target", ev.Target,
				"source", ev.Source,
			)
			return fmt.Errorf("%w: %s", ErrUnknownDestination, name)
		}
		queue = q

	case connection.KindPrivate:
		out = Normalize(ev)
		name = r.registry.PrivateName()
		queue = r.registry.Private()

	default:
		r.ignored.Add(1)
		metrics.EventsIgnored.WithLabelValues(string(ev.Kind)).Inc()
		return nil
	}

	if err := r.submit(name, queue, out); err != nil {
		return err
	}
	return r.submit(OutboxDestination, r.registry.Outbox(), out.Clone())
}

// Handle is the connection.EventHandler form of Dispatch. Routing errors are
// already logged by Dispatch, so they are dropped here.
func (r *Router) Handle(ev connection.Event) {
	_ = r.Dispatch(ev)
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		Routed:       r.routed.Load(),
		Dropped:      r.dropped.Load(),
		Ignored:      r.ignored.Load(),
		Destinations: r.registry.Stats(),
	}
}

// submit places an event on one queue.
func (r *Router) submit(name string, q *GrowableBuffer[Event], ev Event) error {
	if !q.Send(ev) {
		r.drop("queue_closed")
		r.logger.Warn("destination closed, event dropped", "destination", name, "id", ev.ID)
		return fmt.Errorf("%w: %s", ErrQueueClosed, name)
	}

	r.routed.Add(1)
	metrics.EventsRouted.WithLabelValues(name).Inc()
	metrics.QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
	return nil
}

func (r *Router) drop(reason string) {
	r.dropped.Add(1)
	metrics.EventsDropped.WithLabelValues(reason).Inc()
}
