package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
)

// Options selects and configures a lock backend.
type Options struct {
	Backend     string
	SQLite      *sql.DB // shared with the main store
	PostgresURL string
	MySQLDSN    string
	Redis       RedisConfig
	RedisPrefix string
}

// Open builds the configured Manager. The returned close func releases any
// connection Open created; it never closes the shared SQLite handle.
func Open(ctx context.Context, opts Options) (Manager, func(), error) {
	noop := func() {}

	switch opts.Backend {
	case "", BackendSQLite:
		if opts.SQLite == nil {
			return nil, noop, fmt.Errorf("sqlite lock backend requires a database handle")
		}
		log.Println("[Lock] Using SQLite backend")
		return NewSQLiteManager(opts.SQLite, nil), noop, nil

	case BackendPostgres:
		pool, err := NewPostgresPool(ctx, opts.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		m, err := NewPostgresManager(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		log.Println("[Lock] Using Postgres backend")
		return m, pool.Close, nil

	case BackendMySQL:
		db, err := OpenMySQL(opts.MySQLDSN)
		if err != nil {
			return nil, noop, err
		}
		m, err := NewMySQLManager(ctx, db, nil)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		log.Println("[Lock] Using MySQL backend")
		return m, func() { db.Close() }, nil

	case BackendRedis:
		client, err := NewRedisClient(ctx, opts.Redis)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("[Lock] Using Redis backend at %s", opts.Redis.Addr)
		return NewRedisManager(client, opts.RedisPrefix), func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown lock backend %q", opts.Backend)
	}
}
