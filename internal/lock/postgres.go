package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartbuy-api/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS job_locks (
	job_name TEXT PRIMARY KEY,
	owner_token TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresManager stores locks in Postgres. Expiry is computed with the server clock,
// so instances with skewed clocks still agree.
type PostgresManager struct {
	pool *pgxpool.Pool
}

var (
	_ Manager = (*PostgresManager)(nil)
	_ Lister  = (*PostgresManager)(nil)
)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// NewPostgresManager creates the job_locks table if needed.
func NewPostgresManager(ctx context.Context, pool *pgxpool.Pool) (*PostgresManager, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create job_locks: %w", err)
	}
	return &PostgresManager{pool: pool}, nil
}

// Acquire inserts the lock, or takes over an expired one, in one statement.
func (m *PostgresManager) Acquire(ctx context.Context, job, owner string, ttl time.Duration) (bool, error) {
	tag, err := m.pool.Exec(ctx, `
		INSERT INTO job_locks (job_name, owner_token, expires_at)
		VALUES ($1, $2, now() + $3::float8 * interval '1 millisecond')
		ON CONFLICT (job_name) DO UPDATE SET
			owner_token = EXCLUDED.owner_token,
			expires_at = EXCLUDED.expires_at
		WHERE job_locks.expires_at <= now()`,
		job, owner, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", job, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the lock when owner still holds it.
func (m *PostgresManager) Release(ctx context.Context, job, owner string) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM job_locks WHERE job_name = $1 AND owner_token = $2`, job, owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", job, err)
	}
	return nil
}

// ListLocks returns the unexpired locks.
func (m *PostgresManager) ListLocks(ctx context.Context) ([]model.JobLock, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT job_name, owner_token, expires_at FROM job_locks
		WHERE expires_at > now() ORDER BY job_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	locks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.JobLock, error) {
		var l model.JobLock
		err := row.Scan(&l.JobName, &l.OwnerToken, &l.ExpiresAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan locks: %w", err)
	}
	return locks, nil
}
