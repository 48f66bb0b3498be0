package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schemaStatements create the archive table. Each event is stored once per
// destination it was routed to; fan-out copies share the id.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS irc_events (
		id          UUID        NOT NULL,
		destination TEXT        NOT NULL,
		kind        TEXT        NOT NULL,
		source      TEXT        NOT NULL,
		channel     TEXT        NOT NULL DEFAULT '',
		body        TEXT        NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (id, destination)
	)`,
	`CREATE INDEX IF NOT EXISTS irc_events_destination_received_at_idx
		ON irc_events (destination, received_at)`,
}

// EnsureSchema creates the archive table and its index if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
