package router

import (
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrUnknownDestination  = errors.New("unknown destination")
	ErrDestinationConflict = errors.New("destination name conflict")
	ErrQueueClosed         = errors.New("destination queue closed")
)

// Fixed destination names.
const (
	OutboxDestination = "outbox"
	PrivatePrefix     = "priv__"
)

// Annotation keys carried by every normalized event.
const (
	AnnotationType    = "type"
	AnnotationSource  = "source"
	AnnotationChannel = "channel" // public events only
)

// Event is the normalized outbound event placed on destination queues.
// It is not modified after dispatch; fan-out copies are made with Clone.
type Event struct {
	ID          uuid.UUID // Shared by all copies of one inbound event
	Body        string    // Message arguments joined by "\n"
	ReceivedAt  time.Time
	Annotations map[string]string
}

// Kind returns the type annotation.
func (e Event) Kind() string { return e.Annotations[AnnotationType] }

// Source returns the sender prefix annotation.
func (e Event) Source() string { return e.Annotations[AnnotationSource] }

// Channel returns the normalized originating channel, empty for private events.
func (e Event) Channel() string { return e.Annotations[AnnotationChannel] }

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	c := e
	c.Annotations = maps.Clone(e.Annotations)
	return c
}

// Stats contains runtime statistics.
type Stats struct {
	Received     int64                  `json:"received"`
	Routed       int64                  `json:"routed"`
	Dropped      int64                  `json:"dropped"`
	Ignored      int64                  `json:"ignored"`
	Destinations map[string]BufferStats `json:"destinations"`
}
