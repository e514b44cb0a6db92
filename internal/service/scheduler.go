package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig holds the cron specs of the background jobs.
type SchedulerConfig struct {
	PriceTrackerSpec   string
	AlertEvaluatorSpec string
	// RunTimeout bounds the context handed to each run.
	RunTimeout time.Duration
}

// Scheduler triggers the lock-guarded jobs on cron specs. Several instances
// may run one at the same time; the job locks keep each job single-run.
type Scheduler struct {
	cron      *cron.Cron
	tracker   *PriceTracker
	evaluator *AlertEvaluator
	config    SchedulerConfig
	stopOnce  sync.Once
}

// NewScheduler creates a scheduler for the two jobs.
func NewScheduler(tracker *PriceTracker, evaluator *AlertEvaluator, config SchedulerConfig) *Scheduler {
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cron.DefaultLogger)),
		tracker:   tracker,
		evaluator: evaluator,
		config:    config,
	}
}

// Start registers both jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.PriceTrackerSpec, s.runPriceTracker); err != nil {
		return fmt.Errorf("price tracker cron %q: %w", s.config.PriceTrackerSpec, err)
	}
	if _, err := s.cron.AddFunc(s.config.AlertEvaluatorSpec, s.runAlertEvaluator); err != nil {
		return fmt.Errorf("alert evaluator cron %q: %w", s.config.AlertEvaluatorSpec, err)
	}

	s.cron.Start()
	log.Printf("[Scheduler] Started - price tracker: %s, alert evaluator: %s",
		s.config.PriceTrackerSpec, s.config.AlertEvaluatorSpec)
	return nil
}

func (s *Scheduler) runPriceTracker() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()
	s.tracker.Run(ctx)
}

func (s *Scheduler) runAlertEvaluator() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()
	s.evaluator.Run(ctx)
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		log.Printf("[Scheduler] Stopped")
	})
}
