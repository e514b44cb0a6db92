package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"smartbuy-api/internal/model"
)

// bestOffersCTE ranks available offers per product, cheapest first.
const bestOffersCTE = `
	WITH best AS (
		SELECT o.*, ROW_NUMBER() OVER (
			PARTITION BY o.product_id ORDER BY o.price ASC, o.id ASC
		) AS rn
		FROM offers o
		WHERE o.is_available = 1
	)`

const candidateOfferColumns = `
	p.id, p.name, p.brand, p.ean_normalized, p.category,
	b.id, b.shop_id, s.name, b.price, b.freight, b.delivery_days, b.url, b.last_checked_at, b.updated_at,
	r.score, r.bucket, r.reasons`

// GetHouseholdProfile returns the household profile, or nil if none exists.
func (s *SQLiteStore) GetHouseholdProfile(ctx context.Context, householdID string) (*model.HouseholdProfile, error) {
	query := `
		SELECT household_id, budget_monthly, budget_per_mission, life_stage, tags
		FROM household_profiles WHERE household_id = ?`

	var (
		p                model.HouseholdProfile
		monthly, mission sql.NullFloat64
		tagsJSON         string
	)
	err := s.db.QueryRowContext(ctx, query, householdID).Scan(&p.HouseholdID, &monthly, &mission, &p.LifeStage, &tagsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household profile: %w", err)
	}

	p.BudgetMonthly = floatPtr(monthly)
	p.BudgetPerMission = floatPtr(mission)
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode profile tags: %w", err)
	}
	return &p, nil
}

// ListHomeListItems returns the household's recurring purchases, most urgent first.
func (s *SQLiteStore) ListHomeListItems(ctx context.Context, householdID string) ([]model.HomeListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, product_id, frequency_days, next_suggested_at
		FROM home_list_items WHERE household_id = ?
		ORDER BY next_suggested_at ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list home list items: %w", err)
	}
	defer rows.Close()

	var items []model.HomeListItem
	for rows.Next() {
		var (
			it   model.HomeListItem
			next int64
		)
		if err := rows.Scan(&it.ID, &it.HouseholdID, &it.ProductID, &it.FrequencyDays, &next); err != nil {
			return nil, fmt.Errorf("failed to scan home list item: %w", err)
		}
		it.NextSuggestedAt = fromMillis(next)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListMissionWishIDs returns the wish ids linked to a mission.
func (s *SQLiteStore) ListMissionWishIDs(ctx context.Context, missionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT wish_id FROM mission_items WHERE mission_id = ? ORDER BY wish_id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mission items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan mission item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFeedCandidates returns, per wish, every matching product bound to its best offer.
// A product matches when its name contains the wish title (case-insensitive); the best
// offer must respect the wish max_price and the household budget_per_mission when set.
func (s *SQLiteStore) ListFeedCandidates(ctx context.Context, householdID string) ([]model.FeedCandidate, error) {
	query := bestOffersCTE + `
		SELECT w.id, w.title, w.urgency, w.min_price, w.max_price,` + candidateOfferColumns + `
		FROM wishes w
		JOIN products p ON instr(fold(p.name), fold(w.title)) > 0
		JOIN best b ON b.product_id = p.id AND b.rn = 1
		JOIN shops s ON s.id = b.shop_id
		LEFT JOIN offer_risk_scores r ON r.offer_id = b.id
		LEFT JOIN household_profiles hp ON hp.household_id = w.household_id
		WHERE w.household_id = ?
		  AND w.title <> ''
		  AND (w.max_price IS NULL OR b.price <= w.max_price)
		  AND (hp.budget_per_mission IS NULL OR hp.budget_per_mission <= 0 OR b.price <= hp.budget_per_mission)
		ORDER BY w.created_at DESC, w.id ASC, b.price ASC, p.id ASC`

	rows, err := s.db.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed candidates: %w", err)
	}
	defer rows.Close()

	var out []model.FeedCandidate
	for rows.Next() {
		var (
			c                  model.FeedCandidate
			urgency            string
			minPrice, maxPrice sql.NullFloat64
		)
		dest := []any{&c.WishID, &c.WishTitle, &urgency, &minPrice, &maxPrice}
		scan, finish := candidateScanner(&c)
		if err := rows.Scan(append(dest, scan...)...); err != nil {
			return nil, fmt.Errorf("failed to scan feed candidate: %w", err)
		}
		if err := finish(); err != nil {
			return nil, err
		}
		c.WishUrgency = model.Urgency(urgency)
		c.WishMinPrice = floatPtr(minPrice)
		c.WishMaxPrice = floatPtr(maxPrice)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDiscoveryProducts returns up to limit products with their cheapest available offer,
// newest products first. An empty category list samples the whole catalog.
func (s *SQLiteStore) ListDiscoveryProducts(ctx context.Context, categories []string, limit int) ([]model.FeedCandidate, error) {
	var (
		where string
		args  []any
	)
	if len(categories) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
		where = "WHERE fold(p.category) IN (" + marks + ")"
		for _, c := range categories {
			args = append(args, strings.ToLower(c))
		}
	}
	args = append(args, limit)

	query := bestOffersCTE + `
		SELECT` + candidateOfferColumns + `
		FROM products p
		JOIN best b ON b.product_id = p.id AND b.rn = 1
		JOIN shops s ON s.id = b.shop_id
		LEFT JOIN offer_risk_scores r ON r.offer_id = b.id
		` + where + `
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovery products: %w", err)
	}
	defer rows.Close()

	var out []model.FeedCandidate
	for rows.Next() {
		var c model.FeedCandidate
		scan, finish := candidateScanner(&c)
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("failed to scan discovery product: %w", err)
		}
		if err := finish(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// candidateScanner returns scan destinations for candidateOfferColumns and a finish
// func that converts the nullable columns into c.
func candidateScanner(c *model.FeedCandidate) ([]any, func() error) {
	var (
		delivery         sql.NullInt64
		checked, updated int64
		score            sql.NullInt64
		bucket, reasons  sql.NullString
	)
	dest := []any{
		&c.Product.ID, &c.Product.Name, &c.Product.Brand, &c.Product.EAN, &c.Product.Category,
		&c.BestOffer.ID, &c.BestOffer.ShopID, &c.BestOffer.ShopName, &c.BestOffer.Price, &c.BestOffer.Freight,
		&delivery, &c.BestOffer.URL, &checked, &updated,
		&score, &bucket, &reasons,
	}
	finish := func() error {
		c.BestOffer.ProductID = c.Product.ID
		c.BestOffer.IsAvailable = true
		c.BestOffer.DeliveryDays = intPtr(delivery)
		c.BestOffer.UpdatedAt = fromMillis(updated)
		if checked > 0 {
			t := fromMillis(checked)
			c.BestOffer.LastCheckedAt = &t
		}
		if score.Valid {
			risk := &model.RiskAssessment{Score: int(score.Int64), Bucket: model.RiskBucket(bucket.String)}
			if err := json.Unmarshal([]byte(reasons.String), &risk.Reasons); err != nil {
				return fmt.Errorf("failed to decode risk reasons: %w", err)
			}
			c.Risk = risk
		}
		return nil
	}
	return dest, finish
}
