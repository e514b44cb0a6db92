package service

import (
	"context"
	"log"
	"time"

	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
	"smartbuy-api/pkg/uid"
)

// PriceTrackerConfig bounds one price tracking run.
type PriceTrackerConfig struct {
	BatchSize  int
	MaxBatches int
	// Budget is the soft wall-clock deadline, checked between batches.
	Budget time.Duration
	// LockTTL must exceed Budget so the lock only expires after a crash.
	LockTTL time.Duration
}

// PriceTracker re-checks offer prices on a rotating basis.
type PriceTracker struct {
	offers  repository.OfferRepository
	locks   lock.Manager
	checker PriceChecker
	risk    *RiskService
	cfg     PriceTrackerConfig
	now     func() time.Time
	token   func() string
}

// NewPriceTracker creates the job. offers must be an elevated client.
// risk may be nil; when set, risk is recomputed for every offer whose price changed.
func NewPriceTracker(offers repository.OfferRepository, locks lock.Manager, checker PriceChecker, risk *RiskService, cfg PriceTrackerConfig) *PriceTracker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 10
	}
	if cfg.LockTTL <= cfg.Budget {
		cfg.LockTTL = cfg.Budget + time.Minute
	}
	if checker == nil {
		checker = NoopPriceChecker{}
	}
	return &PriceTracker{
		offers:  offers,
		locks:   locks,
		checker: checker,
		risk:    risk,
		cfg:     cfg,
		now:     time.Now,
		token:   uid.Owner,
	}
}

// Run executes one lock-guarded pass. It always returns a result; fatal errors
// stop the remaining batches and are reported with status failed.
func (j *PriceTracker) Run(ctx context.Context) model.PriceTrackerResult {
	start := j.now()
	res := model.PriceTrackerResult{Job: model.JobPriceTracker, Status: model.JobCompleted, StartedAt: start.UTC()}
	owner := j.token()

	acquired, err := j.locks.Acquire(ctx, model.JobPriceTracker, owner, j.cfg.LockTTL)
	if err != nil {
		log.Printf("[PriceTracker] Lock error: %v", err)
		return j.finish(res, model.JobFailed, err)
	}
	if !acquired {
		log.Printf("[PriceTracker] Skipped: lock held by another instance")
		return j.finish(res, model.JobSkippedLocked, nil)
	}
	defer func() {
		if err := lock.ReleaseDetached(ctx, j.locks, model.JobPriceTracker, owner); err != nil {
			log.Printf("[PriceTracker] Failed to release lock (owner %s): %v", owner, err)
		}
	}()

	log.Printf("[PriceTracker] Started (owner %s, batch %d x %d, budget %s)",
		owner, j.cfg.BatchSize, j.cfg.MaxBatches, j.cfg.Budget)

	deadline := start.Add(j.cfg.Budget)
	var cursor *model.OfferCursor

	for i := 0; i < j.cfg.MaxBatches; i++ {
		if j.cfg.Budget > 0 && j.now().After(deadline) {
			log.Printf("[PriceTracker] Deadline reached after %d batches", res.Batches)
			return j.finish(res, model.JobStoppedDeadline, nil)
		}
		if err := ctx.Err(); err != nil {
			return j.finish(res, model.JobFailed, err)
		}

		batch, err := j.offers.ListOffersForCheck(ctx, start, cursor, j.cfg.BatchSize)
		if err != nil {
			log.Printf("[PriceTracker] Fatal: listing batch %d: %v", i+1, err)
			return j.finish(res, model.JobFailed, err)
		}
		if len(batch) == 0 {
			break
		}
		res.Batches++

		for _, offer := range batch {
			j.checkOffer(ctx, offer, &res)
		}

		last := batch[len(batch)-1]
		cursor = &model.OfferCursor{ID: last.ID}
		if last.LastCheckedAt != nil {
			cursor.LastCheckedAt = *last.LastCheckedAt
		}

		log.Printf("[PriceTracker] Batch %d: %d offers (changed %d, unchanged %d, failed %d so far)",
			res.Batches, len(batch), res.Changed, res.Unchanged, res.Failed)

		if len(batch) < j.cfg.BatchSize {
			break
		}
	}

	return j.finish(res, model.JobCompleted, nil)
}

// checkOffer handles one offer. Failures are counted and leave the offer untouched.
func (j *PriceTracker) checkOffer(ctx context.Context, offer model.Offer, res *model.PriceTrackerResult) {
	res.Processed++

	price, err := j.checker.CheckPrice(ctx, offer)
	if err != nil {
		log.Printf("[PriceTracker] Price check failed for offer %s: %v", offer.ID, err)
		res.Failed++
		return
	}

	at := j.now()
	if price == offer.Price {
		if err := j.offers.MarkOfferChecked(ctx, offer.ID, at); err != nil {
			log.Printf("[PriceTracker] Failed to mark offer %s checked: %v", offer.ID, err)
			res.Failed++
			return
		}
		res.Unchanged++
		return
	}

	if err := j.offers.RecordPriceChange(ctx, offer.ID, price, offer.Freight, at); err != nil {
		log.Printf("[PriceTracker] Failed to record price change for offer %s: %v", offer.ID, err)
		res.Failed++
		return
	}
	res.Changed++

	if j.risk != nil {
		if _, err := j.risk.Recompute(ctx, offer.ID); err != nil {
			log.Printf("[PriceTracker] Risk recompute failed for offer %s: %v", offer.ID, err)
		}
	}
}

func (j *PriceTracker) finish(res model.PriceTrackerResult, status model.JobStatus, err error) model.PriceTrackerResult {
	res.Status = status
	res.FinishedAt = j.now().UTC()
	if err != nil {
		res.Error = err.Error()
	}
	if status != model.JobSkippedLocked {
		log.Printf("[PriceTracker] Finished: status=%s processed=%d changed=%d unchanged=%d failed=%d batches=%d",
			res.Status, res.Processed, res.Changed, res.Unchanged, res.Failed, res.Batches)
	}
	return res
}
