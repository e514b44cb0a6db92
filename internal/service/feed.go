package service

import (
	"context"
	"log"
	"time"

	"smartbuy-api/internal/config"
	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
)

// FeedService builds the recommendation feed of a household.
type FeedService struct {
	repo      repository.FeedRepository
	discovery config.DiscoveryMap
	limit     int
	now       func() time.Time
}

// NewFeedService creates a feed service. limit caps each discovery tier.
func NewFeedService(repo repository.FeedRepository, discovery config.DiscoveryMap, limit int) *FeedService {
	if limit <= 0 {
		limit = 12
	}
	return &FeedService{
		repo:      repo,
		discovery: discovery,
		limit:     limit,
		now:       time.Now,
	}
}

// GetFeed returns the ranked feed. It never fails: any error loading the
// household context or the candidates yields an empty feed.
func (s *FeedService) GetFeed(ctx context.Context, householdID, missionID string) (items []model.FeedItem) {
	empty := []model.FeedItem{}
	defer func() {
		// Best-effort analytics event; it never affects the response.
		log.Printf("[FeedService] feed_viewed household=%s mission=%s items=%d", householdID, missionID, len(items))
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[FeedService] Panic building feed for %s: %v", householdID, r)
			items = empty
		}
	}()

	profile, err := s.repo.GetHouseholdProfile(ctx, householdID)
	if err != nil {
		log.Printf("[FeedService] Error loading profile for %s: %v", householdID, err)
		return empty
	}

	homeList, err := s.repo.ListHomeListItems(ctx, householdID)
	if err != nil {
		log.Printf("[FeedService] Error loading home list for %s: %v", householdID, err)
		return empty
	}

	var missionWishIDs []string
	if missionID != "" {
		missionWishIDs, err = s.repo.ListMissionWishIDs(ctx, missionID)
		if err != nil {
			log.Printf("[FeedService] Error loading mission %s: %v", missionID, err)
			return empty
		}
	}

	candidates, err := s.repo.ListFeedCandidates(ctx, householdID)
	if err != nil {
		log.Printf("[FeedService] Error resolving candidates for %s: %v", householdID, err)
		return empty
	}

	if len(candidates) == 0 {
		return s.discover(ctx, profile, missionID)
	}

	return ScoreCandidates(candidates, ScoreContext{
		Now:            s.now(),
		Profile:        profile,
		HomeList:       homeList,
		MissionID:      missionID,
		MissionWishIDs: missionWishIDs,
	})
}

// discover runs the fallback tiers: categories inferred from the profile first,
// then an unfiltered catalog sample.
func (s *FeedService) discover(ctx context.Context, profile *model.HouseholdProfile, missionID string) []model.FeedItem {
	if profile != nil {
		categories := s.discovery.Categories(profile.LifeStage, profile.Tags)
		if len(categories) > 0 {
			found, err := s.repo.ListDiscoveryProducts(ctx, categories, s.limit)
			if err != nil {
				log.Printf("[FeedService] Profile discovery failed: %v", err)
			} else if len(found) > 0 {
				return discoveryItems(found, scoreProfileMatch, ReasonProfileMatch, missionID)
			}
		}
	}

	found, err := s.repo.ListDiscoveryProducts(ctx, nil, s.limit)
	if err != nil {
		log.Printf("[FeedService] Generic discovery failed: %v", err)
		return []model.FeedItem{}
	}
	return discoveryItems(found, scoreGenericSuggest, ReasonGeneric, missionID)
}
