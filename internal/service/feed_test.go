package service

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"smartbuy-api/internal/config"
	"smartbuy-api/internal/model"
)

type fakeFeedRepo struct {
	profile    *model.HouseholdProfile
	profileErr error
	homeErr    error
	missionErr error
	candidates []model.FeedCandidate
	candErr    error

	byCategory  []model.FeedCandidate
	categoryErr error
	catalog     []model.FeedCandidate
	catalogErr  error

	gotCategories []string
	gotLimit      int
}

func (r *fakeFeedRepo) GetHouseholdProfile(context.Context, string) (*model.HouseholdProfile, error) {
	return r.profile, r.profileErr
}

func (r *fakeFeedRepo) ListHomeListItems(context.Context, string) ([]model.HomeListItem, error) {
	return nil, r.homeErr
}

func (r *fakeFeedRepo) ListMissionWishIDs(context.Context, string) ([]string, error) {
	return []string{"w1"}, r.missionErr
}

func (r *fakeFeedRepo) ListFeedCandidates(context.Context, string) ([]model.FeedCandidate, error) {
	return r.candidates, r.candErr
}

func (r *fakeFeedRepo) ListDiscoveryProducts(_ context.Context, categories []string, limit int) ([]model.FeedCandidate, error) {
	r.gotLimit = limit
	if len(categories) > 0 {
		r.gotCategories = categories
		return r.byCategory, r.categoryErr
	}
	return r.catalog, r.catalogErr
}

func newFeed(repo *fakeFeedRepo) *FeedService {
	return NewFeedService(repo, config.DefaultHeuristics().Discovery, 5)
}

func TestGetFeed_ErrorsDegradeToEmpty(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		repo *fakeFeedRepo
		mid  string
	}{
		{"profile", &fakeFeedRepo{profileErr: boom}, ""},
		{"home list", &fakeFeedRepo{homeErr: boom}, ""},
		{"mission", &fakeFeedRepo{missionErr: boom}, "m1"},
		{"candidates", &fakeFeedRepo{candErr: boom, catalog: []model.FeedCandidate{candidate("", "p9", 10)}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := newFeed(tt.repo).GetFeed(context.Background(), "h1", tt.mid)
			if items == nil || len(items) != 0 {
				t.Fatalf("expected empty feed, got %+v", items)
			}
		})
	}
}

func TestGetFeed_ScoresCandidatesWithMission(t *testing.T) {
	repo := &fakeFeedRepo{candidates: []model.FeedCandidate{candidate("w1", "p1", 100), candidate("w2", "p2", 100)}}
	items := newFeed(repo).GetFeed(context.Background(), "h1", "m1")

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Product.ID != "p1" || items[0].MatchScore != 300 || items[0].Reasons[0] != ReasonMission {
		t.Errorf("expected mission item first, got %+v", items[0])
	}
	if items[1].MissionID != "m1" {
		t.Errorf("mission id not propagated: %+v", items[1])
	}
}

func TestGetFeed_ProfileDiscovery(t *testing.T) {
	repo := &fakeFeedRepo{
		profile:    &model.HouseholdProfile{LifeStage: "republica"},
		byCategory: []model.FeedCandidate{candidate("", "p1", 10), candidate("", "p1", 10), candidate("", "p2", 20)},
		catalog:    []model.FeedCandidate{candidate("", "p3", 30)},
	}
	items := newFeed(repo).GetFeed(context.Background(), "h1", "")

	if len(items) != 2 {
		t.Fatalf("expected 2 deduped discovery items, got %+v", items)
	}
	for _, it := range items {
		if it.Type != model.FeedItemDiscovery || it.MatchScore != 70 || !reflect.DeepEqual(it.Reasons, []string{ReasonProfileMatch}) {
			t.Errorf("unexpected discovery item %+v", it)
		}
	}
	if !reflect.DeepEqual(repo.gotCategories, []string{"cleaning", "groceries"}) {
		t.Errorf("categories = %v", repo.gotCategories)
	}
	if repo.gotLimit != 5 {
		t.Errorf("limit = %d", repo.gotLimit)
	}
}

func TestGetFeed_GenericDiscovery(t *testing.T) {
	catalog := []model.FeedCandidate{candidate("", "p3", 30)}
	tests := []struct {
		name string
		repo *fakeFeedRepo
	}{
		{"no profile", &fakeFeedRepo{catalog: catalog}},
		{"no inferred categories", &fakeFeedRepo{profile: &model.HouseholdProfile{LifeStage: "nomad"}, catalog: catalog}},
		{"profile tier empty", &fakeFeedRepo{profile: &model.HouseholdProfile{Tags: []string{"premium"}}, catalog: catalog}},
		{"profile tier error", &fakeFeedRepo{profile: &model.HouseholdProfile{Tags: []string{"premium"}},
			categoryErr: errors.New("boom"), catalog: catalog}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := newFeed(tt.repo).GetFeed(context.Background(), "h1", "")
			if len(items) != 1 || items[0].MatchScore != 50 || items[0].Reasons[0] != ReasonGeneric {
				t.Fatalf("expected generic suggestion, got %+v", items)
			}
		})
	}
}

func TestGetFeed_DiscoveryErrorsYieldEmpty(t *testing.T) {
	repo := &fakeFeedRepo{catalogErr: errors.New("boom")}
	items := newFeed(repo).GetFeed(context.Background(), "h1", "")
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty feed, got %+v", items)
	}
}

func TestGetFeed_LogsView(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	repo := &fakeFeedRepo{profileErr: errors.New("db down")}
	newFeed(repo).GetFeed(context.Background(), "h1", "m1")

	if !strings.Contains(buf.String(), "[FeedService] feed_viewed household=h1 mission=m1 items=0") {
		t.Fatalf("missing feed_viewed line in %q", buf.String())
	}
}

// End to end through SQLite for the Airfryer scenario.
func TestGetFeed_SQLiteAirfryer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.product(t, "p1", "Airfryer Mondial 4L", "kitchen")
	env.offer(t, "o1", "p1", env.shopID, 280)
	env.offer(t, "o2", "p1", env.shopID, 320)

	risk := NewRiskService(env.elevated, config.DefaultHeuristics().Risk)
	if _, err := risk.Recompute(ctx, "o1"); err != nil {
		t.Fatal(err)
	}

	if err := env.std.CreateWish(ctx, &model.Wish{HouseholdID: env.house, Title: "Airfryer",
		MinPrice: f64(300), Urgency: model.UrgencyHigh}); err != nil {
		t.Fatal(err)
	}

	svc := NewFeedService(env.std, config.DefaultHeuristics().Discovery, 12)
	svc.now = func() time.Time { return env.clock.Now() }

	items := svc.GetFeed(ctx, env.house, "")
	if len(items) != 1 {
		t.Fatalf("expected one item, got %+v", items)
	}
	it := items[0]
	if it.MatchScore != 230 || it.BestOffer.ID != "o1" {
		t.Fatalf("unexpected item %+v", it)
	}
	want := []string{ReasonWishMatch, ReasonHighUrgency, ReasonBelowTarget, ReasonSafeOffer}
	if !reflect.DeepEqual(it.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", it.Reasons, want)
	}
}

func TestGetFeed_SQLiteNoWishesFallsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.product(t, "p1", "Detergent", "cleaning")
	env.offer(t, "o1", "p1", env.shopID, 12)
	if err := env.std.UpsertHouseholdProfile(ctx, &model.HouseholdProfile{HouseholdID: env.house,
		LifeStage: "republica"}); err != nil {
		t.Fatal(err)
	}

	items := NewFeedService(env.std, config.DefaultHeuristics().Discovery, 12).GetFeed(ctx, env.house, "")
	if len(items) != 1 || items[0].Reasons[0] != ReasonProfileMatch {
		t.Fatalf("expected profile discovery, got %+v", items)
	}
}
