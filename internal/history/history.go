// Package history records cycle outcomes in a SQL database so restarts
// and peer states can be inspected across the fleet after the fact.
// The append-only restart log remains authoritative; history writes are
// best-effort and never abort a cycle.
package history

import (
	"context"
	"fmt"
	"time"
)

// EventKind classifies a history event.
type EventKind string

const (
	EventRestart EventKind = "restart"
	EventURL     EventKind = "url"
	EventPeer    EventKind = "peer"
)

// Event is one recorded outcome.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
	Host       string // local host identity (user@hostname)
	Target     string // descriptor name or peer identity
	Outcome    string
	Detail     string
}

// Sink stores events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Config selects the backend. An empty type disables history.
type Config struct {
	Type string `mapstructure:"type"` // "", "sqlite", "postgres"
	DSN  string `mapstructure:"dsn"`  // file path for sqlite, conn string for postgres
}

// Open builds a Sink from cfg. A nil Sink with nil error means history
// is disabled.
func Open(cfg Config) (Sink, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "sqlite":
		return openSQLite(cfg.DSN)
	case "postgres":
		return openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown history type %q", cfg.Type)
	}
}

const schema = `CREATE TABLE IF NOT EXISTS hostbeat_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	host TEXT NOT NULL,
	target TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
)`

const schemaPostgres = `CREATE TABLE IF NOT EXISTS hostbeat_events (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	host TEXT NOT NULL,
	target TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
)`
