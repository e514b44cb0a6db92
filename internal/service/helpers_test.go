package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
)

type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration // added after every read
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	std      *repository.SQLiteStore
	elevated *repository.SQLiteStore
	locks    *lock.SQLiteManager
	clock    *testClock
	shopID   string
	badShop  string
	house    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	std := repository.NewSQLiteStore(db, repository.StandardCredential())
	elevated, err := std.Elevate("service-key")
	if err != nil {
		t.Fatal(err)
	}
	clock := newTestClock()
	env := &testEnv{
		std:      std,
		elevated: elevated,
		locks:    lock.NewSQLiteManager(db, func() time.Time { return clock.Now() }),
		clock:    clock,
	}

	ctx := context.Background()
	if env.shopID, err = elevated.UpsertShop(ctx, "GoodShop"); err != nil {
		t.Fatal(err)
	}
	if env.badShop, err = elevated.UpsertShop(ctx, "ScamMart"); err != nil {
		t.Fatal(err)
	}
	h := &model.Household{Name: "casa"}
	if err := std.CreateHousehold(ctx, h); err != nil {
		t.Fatal(err)
	}
	env.house = h.ID
	return env
}

func (e *testEnv) product(t *testing.T, id, name, category string) {
	t.Helper()
	if err := e.elevated.UpsertProduct(context.Background(), &model.Product{ID: id, Name: name, Category: category}); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) offer(t *testing.T, id, productID, shopID string, price float64) {
	t.Helper()
	o := &model.Offer{ID: id, ProductID: productID, ShopID: shopID, Price: price, Freight: 15,
		IsAvailable: true, URL: "https://shop.example/" + id, UpdatedAt: time.UnixMilli(1_000).UTC()}
	if err := e.elevated.UpsertOffer(context.Background(), o); err != nil {
		t.Fatal(err)
	}
}

func f64(v float64) *float64 { return &v }
