package lock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSQLiteManager(t *testing.T) (*lock.SQLiteManager, *fakeClock) {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return lock.NewSQLiteManager(db, clock.Now), clock
}

// runContract exercises the Manager contract. expire advances time past ttl.
func runContract(t *testing.T, m lock.Manager, ttl time.Duration, expire func()) {
	t.Helper()
	ctx := context.Background()
	job := "contract_job_" + time.Now().Format("150405.000000")

	ok, err := m.Acquire(ctx, job, "owner-a", ttl)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = m.Acquire(ctx, job, "owner-b", ttl)
	if err != nil || ok {
		t.Fatalf("second acquire while held: ok=%v err=%v", ok, err)
	}

	// Releasing with the wrong token is a no-op.
	if err := m.Release(ctx, job, "owner-b"); err != nil {
		t.Fatalf("wrong-owner release: %v", err)
	}
	ok, err = m.Acquire(ctx, job, "owner-c", ttl)
	if err != nil || ok {
		t.Fatalf("acquire after wrong-owner release: ok=%v err=%v", ok, err)
	}

	if err := m.Release(ctx, job, "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = m.Acquire(ctx, job, "owner-b", ttl)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}

	expire()
	ok, err = m.Acquire(ctx, job, "owner-c", ttl)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}

	// The stale owner must not release the new owner's lock.
	if err := m.Release(ctx, job, "owner-b"); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	ok, err = m.Acquire(ctx, job, "owner-d", ttl)
	if err != nil || ok {
		t.Fatalf("acquire after stale release: ok=%v err=%v", ok, err)
	}

	if err := m.Release(ctx, job, "owner-c"); err != nil {
		t.Fatalf("final release: %v", err)
	}
}

func TestSQLiteManager_Contract(t *testing.T) {
	m, clock := newSQLiteManager(t)
	runContract(t, m, time.Minute, func() { clock.Advance(time.Minute + time.Second) })
}

func TestSQLiteManager_ConcurrentAcquire(t *testing.T) {
	m, _ := newSQLiteManager(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := m.Acquire(ctx, "price_tracker", "owner-"+string(rune('a'+i)), time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestSQLiteManager_JobsAreIndependent(t *testing.T) {
	m, _ := newSQLiteManager(t)
	ctx := context.Background()

	if ok, err := m.Acquire(ctx, "price_tracker", "a", time.Minute); err != nil || !ok {
		t.Fatalf("price_tracker: ok=%v err=%v", ok, err)
	}
	if ok, err := m.Acquire(ctx, "alert_evaluator", "b", time.Minute); err != nil || !ok {
		t.Fatalf("alert_evaluator: ok=%v err=%v", ok, err)
	}

	locks, err := m.ListLocks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(locks) != 2 || locks[0].JobName != "alert_evaluator" || locks[1].JobName != "price_tracker" {
		t.Fatalf("unexpected locks %+v", locks)
	}
}

func TestReleaseDetached_SurvivesCancel(t *testing.T) {
	m, _ := newSQLiteManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	if ok, err := m.Acquire(ctx, "price_tracker", "a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	cancel()

	if err := lock.ReleaseDetached(ctx, m, "price_tracker", "a"); err != nil {
		t.Fatalf("release on cancelled ctx: %v", err)
	}
	if ok, err := m.Acquire(context.Background(), "price_tracker", "b", time.Minute); err != nil || !ok {
		t.Fatalf("acquire after detached release: ok=%v err=%v", ok, err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, _, err := lock.Open(context.Background(), lock.Options{Backend: "zookeeper"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestPostgresManager_Contract(t *testing.T) {
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := lock.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	m, err := lock.NewPostgresManager(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	runContract(t, m, 300*time.Millisecond, func() { time.Sleep(400 * time.Millisecond) })
}

func TestMySQLManager_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := lock.OpenMySQL(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	clock := &fakeClock{now: time.Now()}
	m, err := lock.NewMySQLManager(context.Background(), db, clock.Now)
	if err != nil {
		t.Fatal(err)
	}
	runContract(t, m, time.Minute, func() { clock.Advance(2 * time.Minute) })
}

func TestRedisManager_Contract(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := lock.NewRedisClient(context.Background(), lock.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	m := lock.NewRedisManager(client, "smartbuy:test:lock:")
	runContract(t, m, 300*time.Millisecond, func() { time.Sleep(400 * time.Millisecond) })
}
