package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartbuy-api/internal/model"
	"smartbuy-api/pkg/uid"
)

// ListActiveAlerts returns every active alert with its product name, ordered by id.
func (s *SQLiteStore) ListActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.household_id, a.type, a.target_value, a.product_id, COALESCE(p.name, ''),
		       a.wish_id, a.channel, a.cooldown_minutes, a.last_triggered_at, a.is_active
		FROM alerts a
		LEFT JOIN products p ON p.id = a.product_id
		WHERE a.is_active = 1
		ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var (
			a                 model.Alert
			alertType         string
			productID, wishID sql.NullString
			lastTriggered     sql.NullInt64
			active            int
		)
		if err := rows.Scan(&a.ID, &a.HouseholdID, &alertType, &a.TargetValue, &productID, &a.ProductName,
			&wishID, &a.Channel, &a.CooldownMinutes, &lastTriggered, &active); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = model.AlertType(alertType)
		a.ProductID = productID.String
		a.WishID = wishID.String
		a.IsActive = active == 1
		if lastTriggered.Valid {
			t := fromMillis(lastTriggered.Int64)
			a.LastTriggeredAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// HasAlertEventSince reports whether (alert, offer) fired strictly after since.
func (s *SQLiteStore) HasAlertEventSince(ctx context.Context, alertID, offerID string, since time.Time) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alert_events
			WHERE alert_id = ? AND offer_id = ? AND triggered_at > ?
		)`, alertID, offerID, toMillis(since)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check alert events: %w", err)
	}
	return exists == 1, nil
}

// LastAlertEvent returns the newest event of an alert, or nil if it never fired.
func (s *SQLiteStore) LastAlertEvent(ctx context.Context, alertID string) (*model.AlertEvent, error) {
	var (
		ev        model.AlertEvent
		payload   string
		triggered int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, alert_id, offer_id, payload, triggered_at
		FROM alert_events WHERE alert_id = ?
		ORDER BY triggered_at DESC, id DESC
		LIMIT 1`, alertID).Scan(&ev.ID, &ev.AlertID, &ev.OfferID, &payload, &triggered)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last alert event: %w", err)
	}
	ev.Payload = []byte(payload)
	ev.TriggeredAt = fromMillis(triggered)
	return &ev, nil
}

// InsertAlertEvent appends an event. An empty ID is filled in.
func (s *SQLiteStore) InsertAlertEvent(ctx context.Context, event *model.AlertEvent) error {
	if err := s.requireElevated("insert alert event"); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uid.New()
	}
	payload := string(event.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_events (id, alert_id, offer_id, payload, triggered_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.AlertID, event.OfferID, payload, toMillis(event.TriggeredAt))
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}
	return nil
}

// MarkAlertTriggered sets last_triggered_at.
func (s *SQLiteStore) MarkAlertTriggered(ctx context.Context, alertID string, at time.Time) error {
	if err := s.requireElevated("mark alert triggered"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET last_triggered_at = ? WHERE id = ?`, toMillis(at), alertID)
	if err != nil {
		return fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	return nil
}

// ListAlertEvents returns the events of an alert, oldest first.
func (s *SQLiteStore) ListAlertEvents(ctx context.Context, alertID string) ([]model.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, offer_id, payload, triggered_at
		FROM alert_events WHERE alert_id = ?
		ORDER BY triggered_at ASC, id ASC`, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var (
			ev        model.AlertEvent
			payload   string
			triggered int64
		)
		if err := rows.Scan(&ev.ID, &ev.AlertID, &ev.OfferID, &payload, &triggered); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		ev.Payload = []byte(payload)
		ev.TriggeredAt = fromMillis(triggered)
		events = append(events, ev)
	}
	return events, rows.Err()
}
