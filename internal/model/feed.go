package model

// Feed item types.
const (
	FeedItemRecommendation = "product_recommendation"
	FeedItemDiscovery      = "discovery"
)

// FeedCandidate binds a wish to a matching product and its best offer.
type FeedCandidate struct {
	WishID       string
	WishTitle    string
	WishUrgency  Urgency
	WishMinPrice *float64
	WishMaxPrice *float64
	Product      Product
	BestOffer    Offer
	Risk         *RiskAssessment
}

// BestOffer is an offer as surfaced in the feed, with its risk projection.
type BestOffer struct {
	Offer
	Risk *RiskAssessment `json:"risk,omitempty"`
}

// FeedItem is a scored, explained recommendation.
type FeedItem struct {
	Type       string    `json:"type"`
	Product    Product   `json:"product"`
	BestOffer  BestOffer `json:"best_offer"`
	Reasons    []string  `json:"reasons"`
	MatchScore int       `json:"match_score"`
	WishID     string    `json:"wish_id,omitempty"`
	MissionID  string    `json:"mission_id,omitempty"`
}
