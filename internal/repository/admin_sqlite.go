package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smartbuy-api/internal/model"
	"smartbuy-api/pkg/uid"
)

func (s *SQLiteStore) CreateHousehold(ctx context.Context, h *model.Household) error {
	if h.ID == "" {
		h.ID = uid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)`,
		h.ID, h.Name, toMillis(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create household: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertHouseholdProfile(ctx context.Context, p *model.HouseholdProfile) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode profile tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO household_profiles (household_id, budget_monthly, budget_per_mission, life_stage, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(household_id) DO UPDATE SET
			budget_monthly = excluded.budget_monthly,
			budget_per_mission = excluded.budget_per_mission,
			life_stage = excluded.life_stage,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		p.HouseholdID, nullFloat(p.BudgetMonthly), nullFloat(p.BudgetPerMission), p.LifeStage,
		string(tagsJSON), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert household profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateWish(ctx context.Context, w *model.Wish) error {
	if w.ID == "" {
		w.ID = uid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if w.Urgency == "" {
		w.Urgency = model.UrgencyLow
	}
	if w.Intent == "" {
		w.Intent = "buy_now"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishes (id, household_id, title, intent, min_price, max_price, urgency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.HouseholdID, strings.TrimSpace(w.Title), w.Intent, nullFloat(w.MinPrice), nullFloat(w.MaxPrice),
		string(w.Urgency), toMillis(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create wish: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddHomeListItem(ctx context.Context, it *model.HomeListItem) error {
	if it.ID == "" {
		it.ID = uid.New()
	}
	if it.FrequencyDays <= 0 {
		it.FrequencyDays = 30
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO home_list_items (id, household_id, product_id, frequency_days, next_suggested_at)
		VALUES (?, ?, ?, ?, ?)`,
		it.ID, it.HouseholdID, it.ProductID, it.FrequencyDays, toMillis(it.NextSuggestedAt))
	if err != nil {
		return fmt.Errorf("failed to add home list item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateMission(ctx context.Context, m *model.Mission) error {
	if m.ID == "" {
		m.ID = uid.New()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO missions (id, household_id, title) VALUES (?, ?, ?)`,
		m.ID, m.HouseholdID, m.Title)
	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddMissionItem(ctx context.Context, missionID, wishID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mission_items (mission_id, wish_id) VALUES (?, ?)
		ON CONFLICT(mission_id, wish_id) DO NOTHING`, missionID, wishID)
	if err != nil {
		return fmt.Errorf("failed to add mission item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if a.ID == "" {
		a.ID = uid.New()
	}
	if a.Type == "" {
		a.Type = model.AlertPrice
	}
	if a.Channel == "" {
		a.Channel = "push"
	}
	if a.CooldownMinutes <= 0 {
		a.CooldownMinutes = 60
	}
	var lastTriggered sql.NullInt64
	if a.LastTriggeredAt != nil {
		lastTriggered = sql.NullInt64{Int64: toMillis(*a.LastTriggeredAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, household_id, type, target_value, product_id, wish_id, channel,
		                    cooldown_minutes, last_triggered_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.HouseholdID, string(a.Type), a.TargetValue, nullString(a.ProductID), nullString(a.WishID),
		a.Channel, a.CooldownMinutes, lastTriggered, boolInt(a.IsActive))
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// UpsertShop returns the id of the named shop, creating it if needed.
func (s *SQLiteStore) UpsertShop(ctx context.Context, name string) (string, error) {
	if err := s.requireElevated("upsert shop"); err != nil {
		return "", err
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO shops (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		uid.New(), name)
	if err != nil {
		return "", fmt.Errorf("failed to upsert shop: %w", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM shops WHERE name = ?`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to get shop: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *model.Product) error {
	if err := s.requireElevated("upsert product"); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uid.New()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, brand, ean_normalized, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			ean_normalized = excluded.ean_normalized,
			category = excluded.category`,
		p.ID, p.Name, p.Brand, p.EAN, p.Category, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// UpsertOffer writes an offer and appends a history row when the stored price changes.
// A new offer always gets its initial history row.
func (s *SQLiteStore) UpsertOffer(ctx context.Context, o *model.Offer) error {
	if err := s.requireElevated("upsert offer"); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uid.New()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		current  float64
		existing = true
	)
	err = tx.QueryRowContext(ctx, `SELECT price FROM offers WHERE id = ?`, o.ID).Scan(&current)
	if err == sql.ErrNoRows {
		existing = false
	} else if err != nil {
		return fmt.Errorf("failed to read offer: %w", err)
	}

	var checked int64
	if o.LastCheckedAt != nil {
		checked = toMillis(*o.LastCheckedAt)
	}
	updated := toMillis(o.UpdatedAt)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offers (id, product_id, shop_id, price, freight, delivery_days, is_available, url,
		                    last_checked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			shop_id = excluded.shop_id,
			price = excluded.price,
			freight = excluded.freight,
			delivery_days = excluded.delivery_days,
			is_available = excluded.is_available,
			url = excluded.url,
			updated_at = excluded.updated_at`,
		o.ID, o.ProductID, o.ShopID, o.Price, o.Freight, nullInt(o.DeliveryDays), boolInt(o.IsAvailable), o.URL,
		checked, updated)
	if err != nil {
		return fmt.Errorf("failed to upsert offer: %w", err)
	}

	if !existing || current != o.Price {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO offer_price_history (offer_id, price, freight, captured_at)
			VALUES (?, ?, ?, ?)`, o.ID, o.Price, o.Freight, updated); err != nil {
			return fmt.Errorf("failed to append price history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendPriceHistory appends a raw history point. Used by seeding to backfill history.
func (s *SQLiteStore) AppendPriceHistory(ctx context.Context, p model.PricePoint) error {
	if err := s.requireElevated("append price history"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offer_price_history (offer_id, price, freight, captured_at)
		VALUES (?, ?, ?, ?)`, p.OfferID, p.Price, p.Freight, toMillis(p.CapturedAt))
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// Stats returns row counts of the main tables.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.StoreStats, error) {
	var st model.StoreStats
	counts := []struct {
		table string
		dest  *int64
	}{
		{"households", &st.Households},
		{"wishes", &st.Wishes},
		{"products", &st.Products},
		{"offers", &st.Offers},
		{"offer_price_history", &st.PriceHistory},
		{"offer_risk_scores", &st.RiskScores},
		{"alerts", &st.Alerts},
		{"alert_events", &st.AlertEvents},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return &st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
