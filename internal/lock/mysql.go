package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"smartbuy-api/internal/model"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS job_locks (
	job_name VARCHAR(128) NOT NULL PRIMARY KEY,
	owner_token VARCHAR(64) NOT NULL,
	expires_at BIGINT NOT NULL
)`

// MySQLManager stores locks in MySQL with expiry as unix milliseconds.
type MySQLManager struct {
	db  *sql.DB
	now Clock
}

var (
	_ Manager = (*MySQLManager)(nil)
	_ Lister  = (*MySQLManager)(nil)
)

// OpenMySQL opens and pings a MySQL pool.
func OpenMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}
	return db, nil
}

// NewMySQLManager creates the job_locks table if needed. A nil clock uses time.Now.
func NewMySQLManager(ctx context.Context, db *sql.DB, clock Clock) (*MySQLManager, error) {
	if clock == nil {
		clock = systemClock
	}
	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		return nil, fmt.Errorf("failed to create job_locks: %w", err)
	}
	return &MySQLManager{db: db, now: clock}, nil
}

// Acquire inserts the lock, or takes over an expired one, in one statement.
// owner_token is assigned first so both IFs test the old expires_at.
// MySQL reports 1 affected row for an insert, 2 for a takeover and 0 otherwise.
func (m *MySQLManager) Acquire(ctx context.Context, job, owner string, ttl time.Duration) (bool, error) {
	now := m.now().UnixMilli()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO job_locks (job_name, owner_token, expires_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			owner_token = IF(expires_at <= ?, VALUES(owner_token), owner_token),
			expires_at = IF(expires_at <= ?, VALUES(expires_at), expires_at)`,
		job, owner, now+ttl.Milliseconds(), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", job, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}
	return n >= 1, nil
}

// Release deletes the lock when owner still holds it.
func (m *MySQLManager) Release(ctx context.Context, job, owner string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM job_locks WHERE job_name = ? AND owner_token = ?`, job, owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", job, err)
	}
	return nil
}

// ListLocks returns the unexpired locks.
func (m *MySQLManager) ListLocks(ctx context.Context) ([]model.JobLock, error) {
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
