package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"smartbuy-api/internal/model"
	"smartbuy-api/internal/notify"
)

type recordingDispatcher struct {
	sent []notify.Payload
	err  error
}

func (d *recordingDispatcher) Send(_ context.Context, ch notify.Channel, p notify.Payload) (notify.Result, error) {
	d.sent = append(d.sent, p)
	if d.err != nil {
		return notify.Result{}, &notify.DispatchError{Channel: ch, Err: d.err}
	}
	return notify.Result{Success: true}, nil
}

func newEvaluator(env *testEnv, d notify.Dispatcher, cfg AlertEvaluatorConfig) *AlertEvaluator {
	if cfg.Budget == 0 {
		cfg.Budget = time.Minute
	}
	j := NewAlertEvaluator(env.elevated, env.locks, d, cfg)
	j.now = env.clock.Now
	return j
}

func (e *testEnv) alert(t *testing.T, a model.Alert) string {
	t.Helper()
	a.HouseholdID = e.house
	a.IsActive = true
	if err := e.std.CreateAlert(context.Background(), &a); err != nil {
		t.Fatal(err)
	}
	return a.ID
}

func (e *testEnv) events(t *testing.T, alertID string) []model.AlertEvent {
	t.Helper()
	events, err := e.elevated.ListAlertEvents(context.Background(), alertID)
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func TestAlertEvaluator_CooldownThenRefire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Notebook", "electronics")
	env.offer(t, "o1", "p1", env.shopID, 1899)
	id := env.alert(t, model.Alert{Type: model.AlertPrice, TargetValue: 2000, ProductID: "p1", CooldownMinutes: 60})

	d := &recordingDispatcher{}
	j := newEvaluator(env, d, AlertEvaluatorConfig{})
	t0 := env.clock.Now()

	res := j.Run(ctx)
	if res.Status != model.JobCompleted || res.EventsTriggered != 1 {
		t.Fatalf("first run: %+v", res)
	}
	events := env.events(t, id)
	if len(events) != 1 || events[0].OfferID != "o1" {
		t.Fatalf("events = %+v", events)
	}
	var snap model.AlertSnapshot
	if err := json.Unmarshal(events[0].Payload, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Price != 1899 || snap.Shop != "GoodShop" || snap.URL == "" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(d.sent) != 1 || d.sent[0].Title != "Price alert: Notebook" {
		t.Errorf("dispatched = %+v", d.sent)
	}

	env.clock.Advance(10 * time.Minute)
	res = j.Run(ctx)
	if res.EventsTriggered != 0 || res.SkippedCooldown != 1 {
		t.Fatalf("run at +10m: %+v", res)
	}
	if n := len(env.events(t, id)); n != 1 {
		t.Fatalf("expected no new event inside cooldown, have %d", n)
	}

	env.clock.Advance(60 * time.Minute)
	res = j.Run(ctx)
	if res.EventsTriggered != 1 {
		t.Fatalf("run at +70m: %+v", res)
	}
	events = env.events(t, id)
	if len(events) != 2 || !events[1].TriggeredAt.Equal(t0.Add(70*time.Minute)) {
		t.Fatalf("events = %+v", events)
	}
}

func TestAlertEvaluator_RefiresAtCooldownBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Notebook", "electronics")
	env.offer(t, "o1", "p1", env.shopID, 1899)
	id := env.alert(t, model.Alert{TargetValue: 2000, ProductID: "p1", CooldownMinutes: 60})

	j := newEvaluator(env, &recordingDispatcher{}, AlertEvaluatorConfig{})
	if res := j.Run(ctx); res.EventsTriggered != 1 {
		t.Fatalf("first run: %+v", res)
	}

	env.clock.Advance(60 * time.Minute)
	res := j.Run(ctx)
	if res.EventsTriggered != 1 || res.Suppressed != 0 || res.SkippedCooldown != 0 {
		t.Fatalf("run at exactly +60m: %+v", res)
	}
	if n := len(env.events(t, id)); n != 2 {
		t.Fatalf("expected two events, have %d", n)
	}
}

func TestAlertEvaluator_BackToBackRunsFireOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Detergent", "cleaning")
	env.offer(t, "o1", "p1", env.shopID, 10)
	id := env.alert(t, model.Alert{TargetValue: 12, ProductID: "p1"})

	j := newEvaluator(env, &recordingDispatcher{}, AlertEvaluatorConfig{})
	first := j.Run(ctx)
	second := j.Run(ctx)

	if first.EventsTriggered != 1 || second.EventsTriggered != 0 {
		t.Fatalf("first %+v second %+v", first, second)
	}
	if n := len(env.events(t, id)); n != 1 {
		t.Fatalf("expected exactly one event, have %d", n)
	}
}

func TestAlertEvaluator_DispatchFailureKeepsEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Detergent", "cleaning")
	env.offer(t, "o1", "p1", env.shopID, 10)
	id := env.alert(t, model.Alert{TargetValue: 12, ProductID: "p1", Channel: "whatsapp"})

	d := &recordingDispatcher{err: errors.New("gateway down")}
	res := newEvaluator(env, d, AlertEvaluatorConfig{}).Run(ctx)
	if res.EventsTriggered != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := len(env.events(t, id)); n != 1 {
		t.Fatalf("event not persisted, have %d", n)
	}

	alerts, err := env.elevated.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].LastTriggeredAt == nil {
		t.Fatalf("last_triggered_at not set: %+v", alerts)
	}
}

func TestAlertEvaluator_Outcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Detergent", "cleaning")
	env.product(t, "p2", "Sofa", "home")
	env.offer(t, "o1", "p1", env.shopID, 10)

	wish := &model.Wish{HouseholdID: env.house, Title: "Sofa"}
	if err := env.std.CreateWish(ctx, wish); err != nil {
		t.Fatal(err)
	}

	// Price above target, freight 15 under target, no delivery estimate,
	// a product without offers and a wish-only alert.
	env.alert(t, model.Alert{TargetValue: 5, ProductID: "p1"})
	env.alert(t, model.Alert{Type: model.AlertFreight, TargetValue: 20, ProductID: "p1"})
	env.alert(t, model.Alert{Type: model.AlertDelivery, TargetValue: 3, ProductID: "p1"})
	env.alert(t, model.Alert{TargetValue: 1000, ProductID: "p2"})
	env.alert(t, model.Alert{TargetValue: 1000, WishID: wish.ID})

	res := newEvaluator(env, &recordingDispatcher{}, AlertEvaluatorConfig{}).Run(ctx)
	if res.AlertsProcessed != 5 {
		t.Fatalf("processed = %d", res.AlertsProcessed)
	}
	if res.EventsTriggered != 1 || res.SkippedUnsupported != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAlertEvaluator_OnOfferChangePolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Notebook", "electronics")
	env.offer(t, "o1", "p1", env.shopID, 1899)
	id := env.alert(t, model.Alert{TargetValue: 2000, ProductID: "p1", CooldownMinutes: 60})

	j := newEvaluator(env, &recordingDispatcher{}, AlertEvaluatorConfig{RepeatPolicy: RepeatOnOfferChange})
	if res := j.Run(ctx); res.EventsTriggered != 1 {
		t.Fatalf("first run: %+v", res)
	}

	env.clock.Advance(70 * time.Minute)
	if res := j.Run(ctx); res.EventsTriggered != 0 || res.Suppressed != 1 {
		t.Fatalf("same offer should be suppressed: %+v", res)
	}

	env.offer(t, "o2", "p1", env.badShop, 1799)
	env.clock.Advance(time.Minute)
	if res := j.Run(ctx); res.EventsTriggered != 1 {
		t.Fatalf("new best offer should fire: %+v", res)
	}
	events := env.events(t, id)
	if len(events) != 2 || events[1].OfferID != "o2" {
		t.Fatalf("events = %+v", events)
	}
}

func TestAlertEvaluator_SkipsWhenLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if ok, err := env.locks.Acquire(ctx, model.JobAlertEvaluator, "other-instance", time.Hour); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	res := newEvaluator(env, nil, AlertEvaluatorConfig{}).Run(ctx)
	if res.Status != model.JobSkippedLocked || res.AlertsProcessed != 0 {
		t.Fatalf("expected skipped_locked, got %+v", res)
	}
}

func TestAlertEvaluator_StopsAtDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.product(t, "p1", "Detergent", "cleaning")
	env.offer(t, "o1", "p1", env.shopID, 10)
	for i := 0; i < 3; i++ {
		env.alert(t, model.Alert{TargetValue: 1, ProductID: "p1"})
	}

	j := newEvaluator(env, nil, AlertEvaluatorConfig{BatchSize: 1, Budget: time.Minute})
	env.clock.step = time.Minute

	res := j.Run(ctx)
	if res.Status != model.JobStoppedDeadline || res.AlertsProcessed != 1 {
		t.Fatalf("expected one chunk before the deadline, got %+v", res)
	}
}

func TestParseRepeatPolicy(t *testing.T) {
	if ParseRepeatPolicy("on_offer_change") != RepeatOnOfferChange {
		t.Error("on_offer_change not parsed")
	}
	if ParseRepeatPolicy("") != RepeatAfterWindow || ParseRepeatPolicy("bogus") != RepeatAfterWindow {
		t.Error("expected after_window default")
	}
}
