package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresSink writes events to a fleet-shared PostgreSQL database so
// one dashboard host can see restart activity across all peers.
type postgresSink struct {
	db *sql.DB
}

func openPostgres(dsn string) (Sink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres history requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres history: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres history: %w", err)
	}
	if _, err := db.Exec(schemaPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}
	return &postgresSink{db: db}, nil
}

func (s *postgresSink) Record(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hostbeat_events (kind, occurred_at, host, target, outcome, detail) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.Kind), e.OccurredAt.UTC(), e.Host, e.Target, e.Outcome, e.Detail)
	return err
}

func (s *postgresSink) Close() error { return s.db.Close() }
