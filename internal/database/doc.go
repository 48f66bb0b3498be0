// Package database provides the PostgreSQL connection pool and schema for
// the event archive.
package database
