package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"smartbuy-api/internal/config"
	"smartbuy-api/internal/handler"
	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/middleware"
	"smartbuy-api/internal/notify"
	"smartbuy-api/internal/repository"
	"smartbuy-api/internal/router"
	"smartbuy-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting SmartBuy API...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Auth.CronSecret == "" {
		log.Println("Warning: CRON_SECRET is not set; internal routes will answer CONFIGURATION_ERROR")
	}

	heuristics, err := config.LoadHeuristics(cfg.Jobs.RiskHeuristicsPath)
	if err != nil {
		log.Fatalf("Failed to load heuristics: %v", err)
	}

	// Data store: one connection, two explicit credential tiers.
	db, err := repository.OpenSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite: %v", err)
	}
	defer db.Close()

	store := repository.NewSQLiteStore(db, repository.StandardCredential())
	elevated, err := store.Elevate(cfg.Auth.ServiceRoleKey)
	if err != nil {
		log.Fatalf("Failed to create elevated store client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	locks, closeLocks, err := lock.Open(ctx, lock.Options{
		Backend:     cfg.Lock.Backend,
		SQLite:      db,
		PostgresURL: cfg.Lock.PostgresDSN(),
		MySQLDSN:    cfg.Lock.MySQLDSN(),
		Redis:       redisConfig(cfg),
		RedisPrefix: cfg.Lock.RedisPrefix,
	})
	if err != nil {
		cancel()
		log.Fatalf("Failed to initialize lock backend: %v", err)
	}
	defer closeLocks()

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	var redisClient *redis.Client
	if cfg.Notify.Dispatcher == "redis" {
		redisClient, err = lock.NewRedisClient(ctx, redisConfig(cfg))
		if err != nil {
			log.Printf("Warning: Redis dispatcher unavailable, falling back to log: %v", err)
		} else {
			dispatcher = notify.NewRedisDispatcher(redisClient, cfg.Notify.RedisChannel)
			log.Printf("Redis dispatcher publishing on %s", cfg.Notify.RedisChannel)
		}
	}
	cancel()
	if redisClient != nil {
		defer redisClient.Close()
	}

	checker, err := service.NewPriceChecker(cfg.Jobs.PriceCheckMode, cfg.Jobs.PriceCheckSeed)
	if err != nil {
		log.Fatalf("Failed to create price checker: %v", err)
	}
	log.Printf("Price check mode: %s", cfg.Jobs.PriceCheckMode)

	// Services
	feedService := service.NewFeedService(store, heuristics.Discovery, cfg.Feed.DiscoveryLimit)
	riskService := service.NewRiskService(elevated, heuristics.Risk)
	priceTracker := service.NewPriceTracker(elevated, locks, checker, riskService, service.PriceTrackerConfig{
		BatchSize:  cfg.Jobs.PriceTrackerBatchSize,
		MaxBatches: cfg.Jobs.PriceTrackerMaxBatches,
		Budget:     cfg.Jobs.PriceTrackerBudget,
		LockTTL:    cfg.Lock.TTL(cfg.Jobs.PriceTrackerBudget),
	})
	alertEvaluator := service.NewAlertEvaluator(elevated, locks, dispatcher, service.AlertEvaluatorConfig{
		BatchSize:    cfg.Jobs.AlertBatchSize,
		Budget:       cfg.Jobs.AlertEvaluatorBudget,
		LockTTL:      cfg.Lock.TTL(cfg.Jobs.AlertEvaluatorBudget),
		RepeatPolicy: service.ParseRepeatPolicy(cfg.Jobs.AlertRepeatPolicy),
	})

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(priceTracker, alertEvaluator, service.SchedulerConfig{
			PriceTrackerSpec:   cfg.Scheduler.PriceTrackerCron,
			AlertEvaluatorSpec: cfg.Scheduler.AlertEvaluatorCron,
			RunTimeout:         cfg.Lock.TTL(max(cfg.Jobs.PriceTrackerBudget, cfg.Jobs.AlertEvaluatorBudget)),
		})
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// Handlers
	lister, _ := locks.(lock.Lister)
	r := router.New(router.Config{
		Handler:      handler.New(store),
		FeedHandler:  handler.NewFeedHandler(feedService),
		JobHandler:   handler.NewJobHandler(priceTracker, alertEvaluator),
		RiskHandler:  handler.NewRiskHandler(riskService),
		AdminHandler: handler.NewAdminHandler(elevated, lister, cfg.Lock.Backend),
		JobSecret:    middleware.NewJobSecret(cfg.Auth.CronSecret),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Running jobs finish their batch and release their locks before the store closes.
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Println("Server stopped")
}

func redisConfig(cfg *config.Config) lock.RedisConfig {
	return lock.RedisConfig{
		Addr:     cfg.Lock.RedisAddress(),
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	}
}
