// Command seed loads a YAML or TOML fixture into the SQLite store.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"smartbuy-api/internal/config"
	"smartbuy-api/internal/repository"
	"smartbuy-api/internal/seed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.MustLoad()
	file := flag.String("file", "fixtures/dev.yaml", "fixture file (.yaml, .yml or .toml)")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	if cfg.Auth.ServiceRoleKey == "" {
		log.Fatalf("Configuration error: %v", config.ErrMissingServiceKey)
	}

	fixture, err := seed.Load(*file)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	db, err := repository.OpenSQLite(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite: %v", err)
	}
	defer db.Close()

	store, err := repository.NewSQLiteStore(db, repository.StandardCredential()).Elevate(cfg.Auth.ServiceRoleKey)
	if err != nil {
		log.Fatalf("Failed to create elevated store client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sum, err := seed.Apply(ctx, store, fixture, time.Now())
	if err != nil {
		log.Fatalf("[Seed] Failed after %+v: %v", sum, err)
	}
	log.Printf("[Seed] Loaded %s into %s: %d shops, %d products, %d offers, %d households, %d wishes, %d alerts",
		*file, *dbPath, sum.Shops, sum.Products, sum.Offers, sum.Households, sum.Wishes, sum.Alerts)
}
