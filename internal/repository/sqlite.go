package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, fold)
}

// fold is a Unicode-aware lower(). SQLite's builtin only folds ASCII letters.
func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Tier is the authorization tier of a data store client.
type Tier int

const (
	// TierStandard is the caller-scoped tier used for household reads and writes.
	TierStandard Tier = iota
	// TierElevated is the service tier required for jobs, risk writes and catalog corrections.
	TierElevated
)

func (t Tier) String() string {
	if t == TierElevated {
		return "elevated"
	}
	return "standard"
}

// Credential identifies the tier a client acts with.
type Credential struct {
	Tier Tier
	Key  string
}

// StandardCredential returns the caller-scoped credential.
func StandardCredential() Credential {
	return Credential{Tier: TierStandard}
}

// ElevatedCredential returns the service credential for key.
// It fails with ErrMissingCredential when key is empty.
func ElevatedCredential(key string) (Credential, error) {
	if key == "" {
		return Credential{}, ErrMissingCredential
	}
	return Credential{Tier: TierElevated, Key: key}, nil
}

// SQLiteStore implements the repository interfaces on SQLite.
// All timestamps are stored as INTEGER unix milliseconds.
type SQLiteStore struct {
	db   *sql.DB
	cred Credential
}

var (
	_ FeedRepository  = (*SQLiteStore)(nil)
	_ RiskRepository  = (*SQLiteStore)(nil)
	_ OfferRepository = (*SQLiteStore)(nil)
	_ AlertRepository = (*SQLiteStore)(nil)
	_ AdminRepository = (*SQLiteStore)(nil)
)

// OpenSQLite opens the SQLite database at path and creates the schema.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", path)
	return db, nil
}

// NewSQLiteStore creates a store client acting with cred.
func NewSQLiteStore(db *sql.DB, cred Credential) *SQLiteStore {
	return &SQLiteStore{db: db, cred: cred}
}

// Elevate returns an elevated client sharing the same connection.
func (s *SQLiteStore) Elevate(serviceKey string) (*SQLiteStore, error) {
	cred, err := ElevatedCredential(serviceKey)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: s.db, cred: cred}, nil
}

// Tier returns the tier this client acts with.
func (s *SQLiteStore) Tier() Tier {
	return s.cred.Tier
}

// DB exposes the underlying handle for components sharing the database (the SQLite lock manager).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) requireElevated(op string) error {
	if s.cred.Tier != TierElevated {
		return fmt.Errorf("%s: %w", op, ErrElevatedRequired)
	}
	return nil
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS households (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS household_profiles (
	household_id TEXT PRIMARY KEY REFERENCES households(id) ON DELETE CASCADE,
	budget_monthly REAL,
	budget_per_mission REAL,
	life_stage TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS wishes (
	id TEXT PRIMARY KEY,
	household_id TEXT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	intent TEXT NOT NULL DEFAULT 'buy_now',
	min_price REAL,
	max_price REAL,
	urgency TEXT NOT NULL DEFAULT 'low',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wishes_household ON wishes(household_id, created_at);

CREATE TABLE IF NOT EXISTS shops (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	ean_normalized TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS offers (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	shop_id TEXT NOT NULL REFERENCES shops(id),
	price REAL NOT NULL,
	freight REAL NOT NULL DEFAULT 0,
	delivery_days INTEGER,
	is_available INTEGER NOT NULL DEFAULT 1,
	url TEXT NOT NULL DEFAULT '',
	last_checked_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offers_product_price ON offers(product_id, is_available, price);
CREATE INDEX IF NOT EXISTS idx_offers_check ON offers(is_available, last_checked_at, id);

CREATE TABLE IF NOT EXISTS offer_price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	offer_id TEXT NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
	price REAL NOT NULL,
	freight REAL NOT NULL DEFAULT 0,
	captured_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_offer ON offer_price_history(offer_id, captured_at);

CREATE TABLE IF NOT EXISTS offer_risk_scores (
	offer_id TEXT PRIMARY KEY REFERENCES offers(id) ON DELETE CASCADE,
	score INTEGER NOT NULL,
	bucket TEXT NOT NULL,
	reasons TEXT NOT NULL DEFAULT '[]',
	calculated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS home_list_items (
	id TEXT PRIMARY KEY,
	household_id TEXT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	frequency_days INTEGER NOT NULL DEFAULT 30,
	next_suggested_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_home_list_household ON home_list_items(household_id);

CREATE TABLE IF NOT EXISTS missions (
	id TEXT PRIMARY KEY,
	household_id TEXT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS mission_items (
	mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
	wish_id TEXT NOT NULL REFERENCES wishes(id) ON DELETE CASCADE,
	PRIMARY KEY (mission_id, wish_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	household_id TEXT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	type TEXT NOT NULL DEFAULT 'price',
	target_value REAL NOT NULL,
	product_id TEXT REFERENCES products(id) ON DELETE CASCADE,
	wish_id TEXT REFERENCES wishes(id) ON DELETE CASCADE,
	channel TEXT NOT NULL DEFAULT 'push',
	cooldown_minutes INTEGER NOT NULL DEFAULT 60,
	last_triggered_at INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active, id);

CREATE TABLE IF NOT EXISTS alert_events (
	id TEXT PRIMARY KEY,
	alert_id TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
	offer_id TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	triggered_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_events_pair ON alert_events(alert_id, offer_id, triggered_at);

CREATE TABLE IF NOT EXISTS job_locks (
	job_name TEXT PRIMARY KEY,
	owner_token TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
