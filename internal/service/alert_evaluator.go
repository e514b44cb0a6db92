package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"smartbuy-api/internal/lock"
	"smartbuy-api/internal/model"
	"smartbuy-api/internal/notify"
	"smartbuy-api/internal/repository"
	"smartbuy-api/pkg/uid"
)

// RepeatPolicy decides whether an alert may fire again for an offer it already fired for.
type RepeatPolicy string

const (
	// RepeatAfterWindow fires again once the cooldown and dedup window have lapsed,
	// even if the condition never stopped being true.
	RepeatAfterWindow RepeatPolicy = "after_window"
	// RepeatOnOfferChange fires again only when the best offer differs from the last fired one.
	RepeatOnOfferChange RepeatPolicy = "on_offer_change"
)

// ParseRepeatPolicy maps a config value to a policy, defaulting to RepeatAfterWindow.
func ParseRepeatPolicy(s string) RepeatPolicy {
	if RepeatPolicy(s) == RepeatOnOfferChange {
		return RepeatOnOfferChange
	}
	return RepeatAfterWindow
}

// AlertEvaluatorConfig bounds one alert evaluation run.
type AlertEvaluatorConfig struct {
	BatchSize    int
	Budget       time.Duration
	LockTTL      time.Duration
	RepeatPolicy RepeatPolicy
}

type alertOutcome int

const (
	outcomeNotMet alertOutcome = iota
	outcomeTriggered
	outcomeSuppressed
	outcomeCooldown
	outcomeUnsupported
	outcomeFailed
)

// AlertEvaluator compares active alerts with current best offers.
type AlertEvaluator struct {
	alerts     repository.AlertRepository
	locks      lock.Manager
	dispatcher notify.Dispatcher
	cfg        AlertEvaluatorConfig
	now        func() time.Time
	token      func() string
}

// NewAlertEvaluator creates the job. alerts must be an elevated client.
func NewAlertEvaluator(alerts repository.AlertRepository, locks lock.Manager, dispatcher notify.Dispatcher, cfg AlertEvaluatorConfig) *AlertEvaluator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= cfg.Budget {
		cfg.LockTTL = cfg.Budget + time.Minute
	}
	if cfg.RepeatPolicy == "" {
		cfg.RepeatPolicy = RepeatAfterWindow
	}
	if dispatcher == nil {
		dispatcher = notify.LogDispatcher{}
	}
	return &AlertEvaluator{
		alerts:     alerts,
		locks:      locks,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		token:      uid.Owner,
	}
}

// Run executes one lock-guarded pass over the active alerts.
func (j *AlertEvaluator) Run(ctx context.Context) model.AlertEvaluatorResult {
	start := j.now()
	res := model.AlertEvaluatorResult{Job: model.JobAlertEvaluator, Status: model.JobCompleted, StartedAt: start.UTC()}
	owner := j.token()

	acquired, err := j.locks.Acquire(ctx, model.JobAlertEvaluator, owner, j.cfg.LockTTL)
	if err != nil {
		log.Printf("[AlertEvaluator] Lock error: %v", err)
		return j.finish(res, model.JobFailed, err)
	}
	if !acquired {
		log.Printf("[AlertEvaluator] Skipped: lock held by another instance")
		return j.finish(res, model.JobSkippedLocked, nil)
	}
	defer func() {
		if err := lock.ReleaseDetached(ctx, j.locks, model.JobAlertEvaluator, owner); err != nil {
			log.Printf("[AlertEvaluator] Failed to release lock (owner %s): %v", owner, err)
		}
	}()

	alerts, err := j.alerts.ListActiveAlerts(ctx)
	if err != nil {
		log.Printf("[AlertEvaluator] Fatal: listing alerts: %v", err)
		return j.finish(res, model.JobFailed, err)
	}
	log.Printf("[AlertEvaluator] Started (owner %s, %d active alerts, policy %s)", owner, len(alerts), j.cfg.RepeatPolicy)

	deadline := start.Add(j.cfg.Budget)
	for lo := 0; lo < len(alerts); lo += j.cfg.BatchSize {
		if lo > 0 && j.cfg.Budget > 0 && j.now().After(deadline) {
			log.Printf("[AlertEvaluator] Deadline reached after %d alerts", res.AlertsProcessed)
			return j.finish(res, model.JobStoppedDeadline, nil)
		}
		if err := ctx.Err(); err != nil {
			return j.finish(res, model.JobFailed, err)
		}

		hi := min(lo+j.cfg.BatchSize, len(alerts))
		for i := lo; i < hi; i++ {
			res.AlertsProcessed++
			switch j.evaluate(ctx, &alerts[i]) {
			case outcomeTriggered:
				res.EventsTriggered++
			case outcomeSuppressed:
				res.Suppressed++
			case outcomeCooldown:
				res.SkippedCooldown++
			case outcomeUnsupported:
				res.SkippedUnsupported++
			case outcomeFailed:
				res.Failed++
			}
		}
	}

	return j.finish(res, model.JobCompleted, nil)
}

func (j *AlertEvaluator) evaluate(ctx context.Context, a *model.Alert) alertOutcome {
	now := j.now()
	window := a.Cooldown()

	if a.LastTriggeredAt != nil && now.Before(a.LastTriggeredAt.Add(window)) {
		return outcomeCooldown
	}
	if a.ProductID == "" {
		// Wish-only alerts have no product to price.
		return outcomeUnsupported
	}

	offer, err := j.alerts.GetBestOffer(ctx, a.ProductID)
	if err != nil {
		log.Printf("[AlertEvaluator] Alert %s: best offer lookup failed: %v", a.ID, err)
		return outcomeFailed
	}
	if offer == nil {
		return outcomeNotMet
	}

	value, ok := watchedValue(a.Type, offer)
	if !ok {
		return outcomeUnsupported
	}
	if value > a.TargetValue {
		return outcomeNotMet
	}

	dup, err := j.alerts.HasAlertEventSince(ctx, a.ID, offer.ID, now.Add(-window))
	if err != nil {
		log.Printf("[AlertEvaluator] Alert %s: dedup lookup failed: %v", a.ID, err)
		return outcomeFailed
	}
	if dup {
		return outcomeSuppressed
	}

	if j.cfg.RepeatPolicy == RepeatOnOfferChange {
		last, err := j.alerts.LastAlertEvent(ctx, a.ID)
		if err != nil {
			log.Printf("[AlertEvaluator] Alert %s: last event lookup failed: %v", a.ID, err)
			return outcomeFailed
		}
		if last != nil && last.OfferID == offer.ID {
			return outcomeSuppressed
		}
	}

	snapshot := model.AlertSnapshot{Price: offer.Price, Freight: offer.Freight, Shop: offer.ShopName, URL: offer.URL}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[AlertEvaluator] Alert %s: encode payload: %v", a.ID, err)
		return outcomeFailed
	}

	// The event is persisted before dispatch so it survives a failed delivery.
	event := &model.AlertEvent{AlertID: a.ID, OfferID: offer.ID, Payload: payload, TriggeredAt: now.UTC()}
	if err := j.alerts.InsertAlertEvent(ctx, event); err != nil {
		log.Printf("[AlertEvaluator] Alert %s: insert event failed: %v", a.ID, err)
		return outcomeFailed
	}

	if _, err := j.dispatcher.Send(ctx, notify.ParseChannel(a.Channel), alertPayload(a, offer, snapshot)); err != nil {
		log.Printf("[AlertEvaluator] Alert %s: dispatch failed: %v", a.ID, err)
	}

	if err := j.alerts.MarkAlertTriggered(ctx, a.ID, now); err != nil {
		log.Printf("[AlertEvaluator] Alert %s: update last_triggered_at failed: %v", a.ID, err)
	}
	return outcomeTriggered
}

// watchedValue returns the offer value an alert type compares against its target.
func watchedValue(t model.AlertType, offer *model.Offer) (float64, bool) {
	switch t {
	case model.AlertPrice, "":
		return offer.Price, true
	case model.AlertFreight:
		return offer.Freight, true
	case model.AlertDelivery:
		if offer.DeliveryDays == nil {
			return 0, false
		}
		return float64(*offer.DeliveryDays), true
	default:
		return 0, false
	}
}

func alertPayload(a *model.Alert, offer *model.Offer, snap model.AlertSnapshot) notify.Payload {
	name := a.ProductName
	if name == "" {
		name = a.ProductID
	}
	return notify.Payload{
		Title: "Price alert: " + name,
		Body:  fmt.Sprintf("%s now at %.2f (freight %.2f) on %s", name, snap.Price, snap.Freight, snap.Shop),
		Data: map[string]any{
			"alert_id":     a.ID,
			"household_id": a.HouseholdID,
			"offer_id":     offer.ID,
			"price":        snap.Price,
			"freight":      snap.Freight,
			"shop":         snap.Shop,
			"url":          snap.URL,
		},
	}
}

func (j *AlertEvaluator) finish(res model.AlertEvaluatorResult, status model.JobStatus, err error) model.AlertEvaluatorResult {
	res.Status = status
	res.FinishedAt = j.now().UTC()
	if err != nil {
		res.Error = err.Error()
	}
	if status != model.JobSkippedLocked {
		log.Printf("[AlertEvaluator] Finished: status=%s processed=%d triggered=%d suppressed=%d cooldown=%d unsupported=%d failed=%d",
			res.Status, res.AlertsProcessed, res.EventsTriggered, res.Suppressed, res.SkippedCooldown,
			res.SkippedUnsupported, res.Failed)
	}
	return res
}
