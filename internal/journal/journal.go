// Package journal persists attempt outcomes in Postgres. The journal is an
// audit trail and a source of exclusion lists for bulk runs; the registry
// remains the authority on where a work is disseminated.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressworks/disseminator/internal/pipeline"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the attempts table if needed. Keeping the migration
// in code lets docker-compose bootstrap a working deployment.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS attempts (
	id UUID PRIMARY KEY,
	work_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	status TEXT NOT NULL,
	stage TEXT,
	kind TEXT,
	reason TEXT,
	location TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_work_platform ON attempts(work_id, platform);
CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresJournal implements pipeline.Journal on a pgx pool.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// New constructs the journal over an open pool.
func New(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

// Record inserts one terminal outcome.
func (j *PostgresJournal) Record(ctx context.Context, outcome *pipeline.Outcome) error {
	var location *string
	if outcome.Location != nil {
		location = &outcome.Location.Location
	}
	const stmt = `
INSERT INTO attempts (id, work_id, platform, status, stage, kind, reason, location, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := j.pool.Exec(ctx, stmt,
		outcome.AttemptID.String(), outcome.WorkID, string(outcome.Platform),
		string(outcome.Status), string(outcome.Stage), string(outcome.Kind),
		outcome.Reason, location, outcome.StartedAt, outcome.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListTerminal returns the work IDs whose latest attempt on the platform
// reached any of the given statuses. Bulk runs use it to exclude works
// that already succeeded or were skipped as duplicates.
func (j *PostgresJournal) ListTerminal(ctx context.Context, platform pipeline.Platform, statuses ...pipeline.Status) ([]string, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	const stmt = `
SELECT DISTINCT ON (work_id) work_id, status
FROM attempts
WHERE platform = $1
ORDER BY work_id, finished_at DESC`
	rows, err := j.pool.Query(ctx, stmt, string(platform))
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var workID, status string
		if err := rows.Scan(&workID, &status); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		for _, name := range names {
			if status == name {
				out = append(out, workID)
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}
