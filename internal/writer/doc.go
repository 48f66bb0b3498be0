// Package writer drains destination queues.
//
// Writers:
//   - ArchiveWriter: batches events into the irc_events table (PostgreSQL)
//   - StreamWriter: one JSON object per line to any io.Writer
//
// Each destination queue has exactly one consumer. Stop closes the writer's
// queues and returns once everything already queued has been written.
package writer
