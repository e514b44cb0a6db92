package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"smartbuy-api/internal/config"
	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
)

// Risk reasons.
const (
	ReasonBadShop    = "shop has questionable reputation"
	ReasonVolatility = "high recent price volatility"
)

// AssessRisk scores an offer from its shop name and its recent price history.
// It is a pure function of its inputs.
func AssessRisk(shopName string, history []model.PricePoint, h config.RiskHeuristics) model.RiskAssessment {
	score := 100
	reasons := []string{}

	for _, bad := range h.Denylist {
		if strings.EqualFold(strings.TrimSpace(shopName), strings.TrimSpace(bad)) {
			score -= h.ShopPenalty
			reasons = append(reasons, ReasonBadShop)
			break
		}
	}

	window := history
	if len(window) > h.VolatilityWindow {
		window = window[:h.VolatilityWindow]
	}
	if len(window) >= 2 {
		lo, hi := window[0].Price, window[0].Price
		for _, p := range window[1:] {
			lo = min(lo, p.Price)
			hi = max(hi, p.Price)
		}
		if hi > h.VolatilityRatio*lo {
			score -= h.VolatilityPenalty
			reasons = append(reasons, ReasonVolatility)
		}
	}

	score = min(max(score, 0), 100)
	return model.RiskAssessment{Score: score, Bucket: bucketFor(score, h), Reasons: reasons}
}

func bucketFor(score int, h config.RiskHeuristics) model.RiskBucket {
	switch {
	case score < h.CThreshold:
		return model.BucketC
	case score < h.BThreshold:
		return model.BucketB
	default:
		return model.BucketA
	}
}

// RiskService recomputes and persists offer risk projections.
// Its repository must be an elevated client.
type RiskService struct {
	repo       repository.RiskRepository
	heuristics config.RiskHeuristics
	now        func() time.Time
}

// NewRiskService creates a risk service.
func NewRiskService(repo repository.RiskRepository, heuristics config.RiskHeuristics) *RiskService {
	return &RiskService{repo: repo, heuristics: heuristics, now: time.Now}
}

// Recompute assesses an offer and upserts the result.
func (s *RiskService) Recompute(ctx context.Context, offerID string) (*model.RiskAssessment, error) {
	offer, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentPrices(ctx, offerID, s.heuristics.VolatilityWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	assessment := AssessRisk(offer.ShopName, history, s.heuristics)
	err = s.repo.UpsertRiskScore(ctx, model.OfferRiskScore{
		OfferID:        offerID,
		RiskAssessment: assessment,
		CalculatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist risk score: %w", err)
	}

	if assessment.Bucket != model.BucketA {
		log.Printf("[RiskService] Offer %s scored %d (%s): %s", offerID, assessment.Score, assessment.Bucket,
			strings.Join(assessment.Reasons, ", "))
	}
	return &assessment, nil
}
