package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"smartbuy-api/internal/model"
)

const offerColumns = `
	o.id, o.product_id, o.shop_id, s.name, o.price, o.freight, o.delivery_days,
	o.is_available, o.url, o.last_checked_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*model.Offer, error) {
	var (
		o                model.Offer
		delivery         sql.NullInt64
		available        int
		checked, updated int64
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.ShopID, &o.ShopName, &o.Price, &o.Freight, &delivery,
		&available, &o.URL, &checked, &updated); err != nil {
		return nil, err
	}
	o.DeliveryDays = intPtr(delivery)
	o.IsAvailable = available == 1
	o.UpdatedAt = fromMillis(updated)
	if checked > 0 {
		t := fromMillis(checked)
		o.LastCheckedAt = &t
	}
	return &o, nil
}

// GetOffer returns an offer with its shop name.
func (s *SQLiteStore) GetOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+offerColumns+`
		FROM offers o JOIN shops s ON s.id = o.shop_id
		WHERE o.id = ?`, offerID)

	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("offer %s: %w", offerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

// GetBestOffer returns the cheapest available offer of a product, or nil if none.
func (s *SQLiteStore) GetBestOffer(ctx context.Context, productID string) (*model.Offer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+offerColumns+`
		FROM offers o JOIN shops s ON s.id = o.shop_id
		WHERE o.product_id = ? AND o.is_available = 1
		ORDER BY o.price ASC, o.id ASC
		LIMIT 1`, productID)

	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get best offer: %w", err)
	}
	return o, nil
}

// ListRecentPrices returns up to limit history points of an offer, newest first.
func (s *SQLiteStore) ListRecentPrices(ctx context.Context, offerID string, limit int) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT offer_id, price, freight, captured_at
		FROM offer_price_history
		WHERE offer_id = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?`, offerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var (
			p        model.PricePoint
			captured int64
		)
		if err := rows.Scan(&p.OfferID, &p.Price, &p.Freight, &captured); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.CapturedAt = fromMillis(captured)
		points = append(points, p)
	}
	return points, rows.Err()
}

// UpsertRiskScore overwrites the current risk projection of an offer.
func (s *SQLiteStore) UpsertRiskScore(ctx context.Context, score model.OfferRiskScore) error {
	if err := s.requireElevated("upsert risk score"); err != nil {
		return err
	}

	reasons := score.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("failed to encode risk reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offer_risk_scores (offer_id, score, bucket, reasons, calculated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(offer_id) DO UPDATE SET
			score = excluded.score,
			bucket = excluded.bucket,
			reasons = excluded.reasons,
			calculated_at = excluded.calculated_at`,
		score.OfferID, score.Score, string(score.Bucket), string(reasonsJSON), toMillis(score.CalculatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert risk score: %w", err)
	}
	return nil
}

// GetRiskScore returns the current risk projection of an offer.
func (s *SQLiteStore) GetRiskScore(ctx context.Context, offerID string) (*model.OfferRiskScore, error) {
	var (
		rs          model.OfferRiskScore
		bucket      string
		reasonsJSON string
		calculated  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT offer_id, score, bucket, reasons, calculated_at
		FROM offer_risk_scores WHERE offer_id = ?`, offerID).
		Scan(&rs.OfferID, &rs.Score, &bucket, &reasonsJSON, &calculated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("risk score %s: %w", offerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk score: %w", err)
	}
	rs.Bucket = model.RiskBucket(bucket)
	rs.CalculatedAt = fromMillis(calculated)
	if err := json.Unmarshal([]byte(reasonsJSON), &rs.Reasons); err != nil {
		return nil, fmt.Errorf("failed to decode risk reasons: %w", err)
	}
	return &rs, nil
}

// ListOffersForCheck returns the next keyset page of available offers whose
// last_checked_at is before checkedBefore. Never-checked offers sort first.
func (s *SQLiteStore) ListOffersForCheck(ctx context.Context, checkedBefore time.Time, after *model.OfferCursor, limit int) ([]model.Offer, error) {
	if err := s.requireElevated("list offers for check"); err != nil {
		return nil, err
	}

	var (
		afterChecked int64 = -1
		afterID      string
	)
	if after != nil {
		afterID = after.ID
		if !after.LastCheckedAt.IsZero() {
			afterChecked = toMillis(after.LastCheckedAt)
		} else {
			afterChecked = 0
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+offerColumns+`
		FROM offers o JOIN shops s ON s.id = o.shop_id
		WHERE o.is_available = 1
		  AND o.last_checked_at < ?
		  AND (o.last_checked_at > ? OR (o.last_checked_at = ? AND o.id > ?))
		ORDER BY o.last_checked_at ASC, o.id ASC
		LIMIT ?`,
		toMillis(checkedBefore), afterChecked, afterChecked, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for check: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

// RecordPriceChange updates the offer price and appends a history row in one transaction.
func (s *SQLiteStore) RecordPriceChange(ctx context.Context, offerID string, price, freight float64, at time.Time) error {
	if err := s.requireElevated("record price change"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ms := toMillis(at)
	res, err := tx.ExecContext(ctx, `
		UPDATE offers SET price = ?, updated_at = ?, last_checked_at = ?
		WHERE id = ?`, price, ms, ms, offerID)
	if err != nil {
		return fmt.Errorf("failed to update offer price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("offer %s: %w", offerID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO offer_price_history (offer_id, price, freight, captured_at)
		VALUES (?, ?, ?, ?)`, offerID, price, freight, ms); err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkOfferChecked updates only last_checked_at; updated_at is left untouched.
func (s *SQLiteStore) MarkOfferChecked(ctx context.Context, offerID string, at time.Time) error {
	if err := s.requireElevated("mark offer checked"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `UPDATE offers SET last_checked_at = ? WHERE id = ?`, toMillis(at), offerID)
	if err != nil {
		return fmt.Errorf("failed to mark offer checked: %w", err)
	}
	return nil
}
