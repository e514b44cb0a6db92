package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smartbuy-api/internal/repository"
	"smartbuy-api/internal/seed"
)

const fixtureYAML = `
shops: [GoodShop]
products:
  - {id: p1, name: Airfryer Mondial 4L, category: Kitchen}
offers:
  - {id: o1, product: p1, shop: GoodShop, price: 280, freight: 15}
  - {id: o2, product: p1, shop: ScamMart, price: 199, available: false}
households:
  - id: h1
    name: casa
    profile: {life_stage: republica, tags: [preco_baixo]}
    wishes:
      - {id: w1, title: Airfryer, min_price: 300, urgency: high}
    missions:
      - {id: m1, title: Cozinha, wishes: [w1]}
    alerts:
      - {target: 300, product: p1}
`

const fixtureTOML = `
shops = ["GoodShop"]

[[products]]
id = "p1"
name = "Airfryer Mondial 4L"
category = "kitchen"

[[offers]]
id = "o1"
product = "p1"
shop = "GoodShop"
price = 280.0
freight = 15.0

[[households]]
id = "h1"
name = "casa"

  [[households.wishes]]
  id = "w1"
  title = "Airfryer"
  urgency = "high"
`

func newStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := repository.NewSQLiteStore(db, repository.StandardCredential()).Elevate("service-key")
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestApplyYAML(t *testing.T) {
	f, err := seed.Parse([]byte(fixtureYAML), false)
	if err != nil {
		t.Fatal(err)
	}
	store := newStore(t)
	ctx := context.Background()

	sum, err := seed.Apply(ctx, store, f, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Shops != 2 || sum.Offers != 2 || sum.Households != 1 || sum.Wishes != 1 || sum.Alerts != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Offers != 2 || stats.PriceHistory != 2 || stats.Alerts != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	best, err := store.GetBestOffer(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if best == nil || best.ID != "o1" {
		t.Fatalf("unavailable offer should not win: %+v", best)
	}

	ids, err := store.ListMissionWishIDs(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "w1" {
		t.Fatalf("mission wishes = %v", ids)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.toml")
	if err := os.WriteFile(path, []byte(fixtureTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := seed.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Offers) != 1 || f.Offers[0].Price != 280 || len(f.Households[0].Wishes) != 1 {
		t.Fatalf("fixture = %+v", f)
	}

	if _, err := seed.Apply(context.Background(), newStore(t), f, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	tests := map[string]string{
		"offer for unknown product": `offers: [{id: o1, product: nope, shop: GoodShop, price: 1}]`,
		"negative price":            "products: [{id: p1, name: X}]\noffers: [{id: o1, product: p1, shop: S, price: -1}]",
		"home list unknown product": `households: [{id: h1, home_list: [{product: nope}]}]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := seed.Parse([]byte(doc), false); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyNeedsElevatedClient(t *testing.T) {
	f, err := seed.Parse([]byte(fixtureYAML), false)
	if err != nil {
		t.Fatal(err)
	}
	db, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	std := repository.NewSQLiteStore(db, repository.StandardCredential())
	if _, err := seed.Apply(context.Background(), std, f, time.Now()); err == nil {
		t.Fatal("expected standard client to be rejected")
	}
}

func TestLoadDevFixture(t *testing.T) {
	f, err := seed.Load(filepath.Join("..", "..", "fixtures", "dev.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seed.Apply(context.Background(), newStore(t), f, time.Now()); err != nil {
		t.Fatal(err)
	}
}
