package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type sqliteSink struct {
	db *sql.DB
}

func openSQLite(path string) (Sink, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history: %w", err)
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return &sqliteSink{db: db}, nil
}

func (s *sqliteSink) Record(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hostbeat_events (kind, occurred_at, host, target, outcome, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.OccurredAt.UTC(), e.Host, e.Target, e.Outcome, e.Detail)
	return err
}

func (s *sqliteSink) Close() error { return s.db.Close() }
