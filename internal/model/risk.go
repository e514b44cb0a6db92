package model

import "time"

// RiskBucket is the coarse safety class of an offer.
type RiskBucket string

const (
	BucketA RiskBucket = "A"
	BucketB RiskBucket = "B"
	BucketC RiskBucket = "C"
)

// RiskAssessment is the output of the risk heuristics for one offer.
type RiskAssessment struct {
	Score   int        `json:"score"`
	Bucket  RiskBucket `json:"bucket"`
	Reasons []string   `json:"reasons"`
}

// OfferRiskScore is the current risk projection of an offer (one row per offer).
type OfferRiskScore struct {
	OfferID string `json:"offer_id"`
	RiskAssessment
	CalculatedAt time.Time `json:"calculated_at"`
}
