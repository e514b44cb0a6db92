package model

import (
	"encoding/json"
	"time"
)

// AlertType selects which offer value an alert watches.
type AlertType string

const (
	AlertPrice    AlertType = "price"
	AlertFreight  AlertType = "freight"
	AlertDelivery AlertType = "delivery"
)

// Alert is a household's standing request to be notified when a target is met.
type Alert struct {
	ID              string     `json:"id"`
	HouseholdID     string     `json:"household_id"`
	Type            AlertType  `json:"type"`
	TargetValue     float64    `json:"target_value"`
	ProductID       string     `json:"product_id,omitempty"`
	ProductName     string     `json:"product_name,omitempty"`
	WishID          string     `json:"wish_id,omitempty"`
	Channel         string     `json:"channel"`
	CooldownMinutes int        `json:"cooldown_minutes"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	IsActive        bool       `json:"is_active"`
}

// Cooldown returns the cooldown window as a duration.
func (a *Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// AlertEvent is an immutable record of a fired alert.
type AlertEvent struct {
	ID          string          `json:"id"`
	AlertID     string          `json:"alert_id"`
	OfferID     string          `json:"offer_id"`
	Payload     json.RawMessage `json:"payload"`
	TriggeredAt time.Time       `json:"triggered_at"`
}

// AlertSnapshot is the payload stored with an AlertEvent.
type AlertSnapshot struct {
	Price   float64 `json:"price"`
	Freight float64 `json:"freight"`
	Shop    string  `json:"shop"`
	URL     string  `json:"url"`
}
