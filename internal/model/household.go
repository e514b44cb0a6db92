package model

import "time"

// Urgency is the declared urgency of a wish.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Household is the tenant owning wishes, alerts and a spending profile.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// HouseholdProfile holds spending limits and the preferences used by discovery.
type HouseholdProfile struct {
	HouseholdID      string   `json:"household_id"`
	BudgetMonthly    *float64 `json:"budget_monthly,omitempty"`
	BudgetPerMission *float64 `json:"budget_per_mission,omitempty"`
	LifeStage        string   `json:"life_stage,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// Wish is a declared purchase intent.
type Wish struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Title       string    `json:"title"`
	Intent      string    `json:"intent"` // buy_now, research, track_price
	MinPrice    *float64  `json:"min_price,omitempty"`
	MaxPrice    *float64  `json:"max_price,omitempty"`
	Urgency     Urgency   `json:"urgency"`
	CreatedAt   time.Time `json:"created_at"`
}

// HomeListItem is a recurring household purchase with its next suggested date.
type HomeListItem struct {
	ID              string    `json:"id"`
	HouseholdID     string    `json:"household_id"`
	ProductID       string    `json:"product_id"`
	FrequencyDays   int       `json:"frequency_days"`
	NextSuggestedAt time.Time `json:"next_suggested_at"`
}

// Mission groups wishes a household is actively shopping for.
type Mission struct {
	ID          string `json:"id"`
	HouseholdID string `json:"household_id"`
	Title       string `json:"title"`
}
