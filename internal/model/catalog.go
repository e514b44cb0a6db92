package model

import "time"

// Shop is a merchant selling offers.
type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is a catalog entry.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	EAN      string `json:"ean_normalized,omitempty"`
	Category string `json:"category,omitempty"`
}

// Offer is a (product, shop, price) listing.
type Offer struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	ShopID        string     `json:"shop_id"`
	ShopName      string     `json:"shop_name,omitempty"`
	Price         float64    `json:"price"`
	Freight       float64    `json:"freight"`
	DeliveryDays  *int       `json:"delivery_days,omitempty"`
	IsAvailable   bool       `json:"is_available"`
	URL           string     `json:"url,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PricePoint is one row of the append-only price history.
type PricePoint struct {
	OfferID    string    `json:"offer_id"`
	Price      float64   `json:"price"`
	Freight    float64   `json:"freight"`
	CapturedAt time.Time `json:"captured_at"`
}

// OfferCursor is the keyset position (last_checked_at, id) of the price tracker.
// A zero LastCheckedAt stands for "never checked".
type OfferCursor struct {
	LastCheckedAt time.Time
	ID            string
}
