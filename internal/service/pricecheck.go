package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"smartbuy-api/internal/model"
)

// PriceChecker returns the current price of an offer at its shop.
type PriceChecker interface {
	CheckPrice(ctx context.Context, offer model.Offer) (float64, error)
}

// NoopPriceChecker reports the stored price, so runs only advance last_checked_at.
type NoopPriceChecker struct{}

func (NoopPriceChecker) CheckPrice(_ context.Context, offer model.Offer) (float64, error) {
	return offer.Price, nil
}

// SimulatedPriceChecker moves prices by up to +/-10%, rounded to cents,
// from a seeded source so runs are reproducible.
type SimulatedPriceChecker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedPriceChecker creates a simulated checker seeded with seed.
func NewSimulatedPriceChecker(seed int64) *SimulatedPriceChecker {
	return &SimulatedPriceChecker{rng: rand.New(rand.NewSource(seed))}
}

func (c *SimulatedPriceChecker) CheckPrice(_ context.Context, offer model.Offer) (float64, error) {
	c.mu.Lock()
	fluctuation := 1 + (c.rng.Float64()*0.2 - 0.1)
	c.mu.Unlock()
	return math.Round(offer.Price*fluctuation*100) / 100, nil
}

// NewPriceChecker selects a checker by mode: noop or simulated.
func NewPriceChecker(mode string, seed int64) (PriceChecker, error) {
	switch mode {
	case "", "noop":
		return NoopPriceChecker{}, nil
	case "simulated":
		return NewSimulatedPriceChecker(seed), nil
	default:
		return nil, fmt.Errorf("unknown price check mode %q", mode)
	}
}
