package service

import (
	"math"
	"sort"
	"time"

	"smartbuy-api/internal/model"
)

// Score contributions.
const (
	scoreWishMatch     = 100
	scoreRestockDue    = 150
	scoreUrgencyHigh   = 50
	scoreUrgencyMedium = 20
	scoreBelowTarget   = 30
	scoreUnderBudget   = 10
	scoreMission       = 200
	scoreRiskA         = 50
	scoreRiskB         = -50
	scoreRiskC         = -500

	scoreProfileMatch     = 70
	scoreGenericSuggest   = 50
	restockWindowDays     = 7
	missionBudgetFraction = 0.5
)

// Reason strings shown with feed items.
const (
	ReasonWishMatch     = "wish match"
	ReasonRestockDue    = "restock due"
	ReasonHighUrgency   = "high urgency"
	ReasonMediumUrgency = "medium urgency"
	ReasonBelowTarget   = "below target price"
	ReasonUnderBudget   = "well below mission budget"
	ReasonMission       = "part of your active mission"
	ReasonSafeOffer     = "safe offer"
	ReasonNeedsAttn     = "needs attention"
	ReasonHighRisk      = "high risk offer"
	ReasonProfileMatch  = "profile match"
	ReasonGeneric       = "generic suggestion"
)

// ScoreContext is the household state the scoring engine reads.
type ScoreContext struct {
	Now            time.Time
	Profile        *model.HouseholdProfile
	HomeList       []model.HomeListItem
	MissionID      string
	MissionWishIDs []string
}

// ScoreCandidates turns resolved candidates into a ranked, explained feed.
// The first candidate seen for a product wins; ties keep candidate order.
func ScoreCandidates(candidates []model.FeedCandidate, sc ScoreContext) []model.FeedItem {
	homeList := make(map[string]model.HomeListItem, len(sc.HomeList))
	for _, it := range sc.HomeList {
		if _, ok := homeList[it.ProductID]; !ok {
			homeList[it.ProductID] = it
		}
	}
	missionWishes := make(map[string]bool, len(sc.MissionWishIDs))
	for _, id := range sc.MissionWishIDs {
		missionWishes[id] = true
	}

	items := make([]model.FeedItem, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.Product.ID] {
			continue
		}
		seen[c.Product.ID] = true

		score := scoreWishMatch
		reasons := []string{ReasonWishMatch}

		if it, ok := homeList[c.Product.ID]; ok && restockDue(it.NextSuggestedAt, sc.Now) {
			score += scoreRestockDue
			reasons = append(reasons, ReasonRestockDue)
		}

		switch c.WishUrgency {
		case model.UrgencyHigh:
			score += scoreUrgencyHigh
			reasons = append(reasons, ReasonHighUrgency)
		case model.UrgencyMedium:
			score += scoreUrgencyMedium
			reasons = append(reasons, ReasonMediumUrgency)
		}

		price := c.BestOffer.Price
		if c.WishMinPrice != nil && *c.WishMinPrice > 0 && price <= *c.WishMinPrice {
			score += scoreBelowTarget
			reasons = append(reasons, ReasonBelowTarget)
		}

		if sc.Profile != nil && sc.Profile.BudgetPerMission != nil && *sc.Profile.BudgetPerMission > 0 &&
			price < *sc.Profile.BudgetPerMission*missionBudgetFraction {
			score += scoreUnderBudget
			reasons = append(reasons, ReasonUnderBudget)
		}

		if sc.MissionID != "" && c.WishID != "" && missionWishes[c.WishID] {
			score += scoreMission
			reasons = append([]string{ReasonMission}, reasons...)
		}

		if c.Risk != nil {
			switch c.Risk.Bucket {
			case model.BucketA:
				score += scoreRiskA
				reasons = append(reasons, ReasonSafeOffer)
			case model.BucketB:
				score += scoreRiskB
				reasons = append(reasons, ReasonNeedsAttn)
			case model.BucketC:
				score += scoreRiskC
				reasons = append(reasons, ReasonHighRisk)
			}
		}

		items = append(items, model.FeedItem{
			Type:       model.FeedItemRecommendation,
			Product:    c.Product,
			BestOffer:  model.BestOffer{Offer: c.BestOffer, Risk: c.Risk},
			Reasons:    reasons,
			MatchScore: score,
			WishID:     c.WishID,
			MissionID:  sc.MissionID,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].MatchScore > items[j].MatchScore
	})
	return items
}

// restockDue reports whether next is at most restockWindowDays away, rounding
// partial days up. Overdue items are due.
func restockDue(next, now time.Time) bool {
	days := math.Ceil(next.Sub(now).Hours() / 24)
	return days <= restockWindowDays
}

// discoveryItems scores fallback products with a flat score and a single reason.
func discoveryItems(candidates []model.FeedCandidate, score int, reason, missionID string) []model.FeedItem {
	items := make([]model.FeedItem, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.Product.ID] {
			continue
		}
		seen[c.Product.ID] = true
		items = append(items, model.FeedItem{
			Type:       model.FeedItemDiscovery,
			Product:    c.Product,
			BestOffer:  model.BestOffer{Offer: c.BestOffer, Risk: c.Risk},
			Reasons:    []string{reason},
			MatchScore: score,
			MissionID:  missionID,
		})
	}
	return items
}
