package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartbuy-api/internal/model"
)

// SQLiteManager stores locks in the job_locks table of the main SQLite database.
type SQLiteManager struct {
	db  *sql.DB
	now Clock
}

var (
	_ Manager = (*SQLiteManager)(nil)
	_ Lister  = (*SQLiteManager)(nil)
)

// NewSQLiteManager creates a lock manager on db. A nil clock uses time.Now.
func NewSQLiteManager(db *sql.DB, clock Clock) *SQLiteManager {
	if clock == nil {
		clock = systemClock
	}
	return &SQLiteManager{db: db, now: clock}
}

// Acquire inserts the lock, or takes over an expired one, in one statement.
func (m *SQLiteManager) Acquire(ctx context.Context, job, owner string, ttl time.Duration) (bool, error) {
	now := m.now()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO job_locks (job_name, owner_token, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
			owner_token = excluded.owner_token,
			expires_at = excluded.expires_at
		WHERE job_locks.expires_at <= ?`,
		job, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", job, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}
	return n == 1, nil
}

// Release deletes the lock when owner still holds it.
func (m *SQLiteManager) Release(ctx context.Context, job, owner string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM job_locks WHERE job_name = ? AND owner_token = ?`, job, owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", job, err)
	}
	return nil
}

// ListLocks returns the unexpired locks.
func (m *SQLiteManager) ListLocks(ctx context.Context) ([]model.JobLock, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT job_name, owner_token, expires_at FROM job_locks
		WHERE expires_at > ? ORDER BY job_name`, m.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var locks []model.JobLock
	for rows.Next() {
		var (
			l       model.JobLock
			expires int64
		)
		if err := rows.Scan(&l.JobName, &l.OwnerToken, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		l.ExpiresAt = time.UnixMilli(expires).UTC()
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
