package repository

import (
	"context"
	"time"

	"smartbuy-api/internal/model"
)

// FeedRepository defines the reads behind the recommendation feed.
type FeedRepository interface {
	// GetHouseholdProfile returns the household profile, or nil if none exists.
	GetHouseholdProfile(ctx context.Context, householdID string) (*model.HouseholdProfile, error)

	// ListHomeListItems returns the household's recurring purchases.
	ListHomeListItems(ctx context.Context, householdID string) ([]model.HomeListItem, error)

	// ListMissionWishIDs returns the wish ids linked to a mission.
	ListMissionWishIDs(ctx context.Context, missionID string) ([]string, error)

	// ListFeedCandidates returns (wish, product, best offer, risk) tuples in discovery order.
	ListFeedCandidates(ctx context.Context, householdID string) ([]model.FeedCandidate, error)

	// ListDiscoveryProducts returns up to limit products with their cheapest available offer.
	// An empty category list means the whole catalog. Wish fields are left empty.
	ListDiscoveryProducts(ctx context.Context, categories []string, limit int) ([]model.FeedCandidate, error)
}

// RiskRepository defines data access for the risk assessor.
type RiskRepository interface {
	// GetOffer returns an offer with its shop name. Returns ErrNotFound if missing.
	GetOffer(ctx context.Context, offerID string) (*model.Offer, error)

	// ListRecentPrices returns the newest price history points first.
	ListRecentPrices(ctx context.Context, offerID string, limit int) ([]model.PricePoint, error)

	// UpsertRiskScore overwrites the offer's current risk projection. Requires an elevated client.
	UpsertRiskScore(ctx context.Context, score model.OfferRiskScore) error
}

// OfferRepository defines data access for the price tracker. All methods require an elevated client.
type OfferRepository interface {
	// ListOffersForCheck returns available offers not checked since checkedBefore,
	// keyset ordered by (last_checked_at, id) and strictly after the cursor when one is given.
	ListOffersForCheck(ctx context.Context, checkedBefore time.Time, after *model.OfferCursor, limit int) ([]model.Offer, error)

	// RecordPriceChange updates price, updated_at and last_checked_at and appends a history row.
	RecordPriceChange(ctx context.Context, offerID string, price, freight float64, at time.Time) error

	// MarkOfferChecked updates only last_checked_at.
	MarkOfferChecked(ctx context.Context, offerID string, at time.Time) error
}

// AlertRepository defines data access for the alert evaluator. Writes require an elevated client.
type AlertRepository interface {
	// ListActiveAlerts returns every active alert ordered by id.
	ListActiveAlerts(ctx context.Context) ([]model.Alert, error)

	// GetBestOffer returns the cheapest available offer of a product, or nil if none.
	GetBestOffer(ctx context.Context, productID string) (*model.Offer, error)

	// HasAlertEventSince reports whether an event exists for (alert, offer) strictly after since,
	// so an event exactly one window old no longer counts.
	HasAlertEventSince(ctx context.Context, alertID, offerID string, since time.Time) (bool, error)

	// LastAlertEvent returns the newest event of an alert, or nil if it never fired.
	LastAlertEvent(ctx context.Context, alertID string) (*model.AlertEvent, error)

	// InsertAlertEvent appends an immutable alert event.
	InsertAlertEvent(ctx context.Context, event *model.AlertEvent) error

	// MarkAlertTriggered sets last_triggered_at.
	MarkAlertTriggered(ctx context.Context, alertID string, at time.Time) error
}

// AdminRepository defines the writes used by seeding and administrative correction.
// Catalog writes require an elevated client; household writes accept either tier.
type AdminRepository interface {
	CreateHousehold(ctx context.Context, h *model.Household) error
	UpsertHouseholdProfile(ctx context.Context, p *model.HouseholdProfile) error
	CreateWish(ctx context.Context, w *model.Wish) error
	AddHomeListItem(ctx context.Context, it *model.HomeListItem) error
	CreateMission(ctx context.Context, m *model.Mission) error
	AddMissionItem(ctx context.Context, missionID, wishID string) error
	CreateAlert(ctx context.Context, a *model.Alert) error

	// UpsertShop returns the id of the shop with this name, creating it if needed.
	UpsertShop(ctx context.Context, name string) (string, error)
	UpsertProduct(ctx context.Context, p *model.Product) error

	// UpsertOffer writes an offer and appends a price history row when the price is new.
	UpsertOffer(ctx context.Context, o *model.Offer) error

	// Stats returns row counts of the main tables.
	Stats(ctx context.Context) (*model.StoreStats, error)
}
