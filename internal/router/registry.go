package router

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBufferSize is the initial capacity of each destination queue.
const DefaultBufferSize = 1000

// NormalizeChannel returns the destination name for a channel: one leading
// '#' removed, surrounding space trimmed, lower-cased.
func NormalizeChannel(channel string) string {
	name := strings.TrimPrefix(strings.TrimSpace(channel), "#")
	// A Caser holds state, so one is built per call
	return cases.Lower(language.Und).String(name)
}

// PrivateDestination returns the destination name for private messages to nickname.
func PrivateDestination(nickname string) string {
	return PrivatePrefix + nickname
}

// Registry maps destination names to their queues. It is built once, before
// the connection supervisor starts, and is read-only afterwards.
type Registry struct {
	private  string
	channels map[string]struct{}
	queues   map[string]*GrowableBuffer[Event]
	names    []string
}

// NewRegistry creates one queue per distinct normalized channel, one for
// private messages to nickname and the outbox. Duplicate channels collapse
// into one destination.
func NewRegistry(channels []string, nickname string, bufferSize int) (*Registry, error) {
	if nickname == "" {
		return nil, fmt.Errorf("%w: empty nickname", ErrDestinationConflict)
	}
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}

	r := &Registry{
		private:  PrivateDestination(nickname),
		channels: make(map[string]struct{}, len(channels)),
		queues:   make(map[string]*GrowableBuffer[Event], len(channels)+2),
	}
	r.queues[r.private] = NewGrowableBuffer[Event](bufferSize)
	r.queues[OutboxDestination] = NewGrowableBuffer[Event](bufferSize)

	for _, ch := range channels {
		name := NormalizeChannel(ch)
		switch {
		case name == "":
			return nil, fmt.Errorf("%w: channel %q normalizes to an empty name", ErrDestinationConflict, ch)
		case name == OutboxDestination, name == r.private:
			return nil, fmt.Errorf("%w: channel %q collides with destination %q", ErrDestinationConflict, ch, name)
		}
		if _, ok := r.channels[name]; ok {
			continue
		}
		r.channels[name] = struct{}{}
		r.queues[name] = NewGrowableBuffer[Event](bufferSize)
	}

	for name := range r.queues {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r, nil
}

// Lookup returns the queue registered under name.
func (r *Registry) Lookup(name string) (*GrowableBuffer[Event], bool) {
	q, ok := r.queues[name]
	return q, ok
}

// Channel returns the queue of a channel destination. Unlike Lookup it never
// resolves to the private or outbox destinations.
func (r *Registry) Channel(name string) (*GrowableBuffer[Event], bool) {
	if _, ok := r.channels[name]; !ok {
		return nil, false
	}
	return r.queues[name], true
}

// Private returns the private message queue.
func (r *Registry) Private() *GrowableBuffer[Event] {
	return r.queues[r.private]
}

// PrivateName returns the private destination name.
func (r *Registry) PrivateName() string {
	return r.private
}

// Outbox returns the outbox queue.
func (r *Registry) Outbox() *GrowableBuffer[Event] {
	return r.queues[OutboxDestination]
}

// Names returns all destination names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Channels returns the channel destination names in sorted order.
func (r *Registry) Channels() []string {
	out := make([]string, 0, len(r.channels))
	for _, name := range r.names {
		if _, ok := r.channels[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Stats returns buffer statistics per destination.
func (r *Registry) Stats() map[string]BufferStats {
	out := make(map[string]BufferStats, len(r.queues))
	for name, q := range r.queues {
		out[name] = q.Stats()
	}
	return out
}

// Close closes every queue. Consumers still receive what was already queued.
func (r *Registry) Close() {
	for _, q := range r.queues {
		q.Close()
	}
}
