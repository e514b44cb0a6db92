package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Heuristics holds the tunable data behind risk assessment and discovery.
type Heuristics struct {
	Risk      RiskHeuristics `yaml:"risk"`
	Discovery DiscoveryMap   `yaml:"discovery"`
}

// RiskHeuristics configures the offer risk score.
type RiskHeuristics struct {
	Denylist          []string `yaml:"denylist"`
	ShopPenalty       int      `yaml:"shop_penalty"`
	VolatilityWindow  int      `yaml:"volatility_window"`
	VolatilityRatio   float64  `yaml:"volatility_ratio"`
	VolatilityPenalty int      `yaml:"volatility_penalty"`
	// Scores below CThreshold are bucket C, below BThreshold bucket B, otherwise A.
	CThreshold int `yaml:"c_threshold"`
	BThreshold int `yaml:"b_threshold"`
}

// DiscoveryMap maps household preferences to catalog categories.
type DiscoveryMap struct {
	LifeStages map[string][]string `yaml:"life_stages"`
	Tags       map[string][]string `yaml:"tags"`
}

// DefaultHeuristics returns the built-in heuristics.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Risk: RiskHeuristics{
			Denylist:          []string{"FakeStore", "ScamMart", "LojaProblematica"},
			ShopPenalty:       40,
			VolatilityWindow:  10,
			VolatilityRatio:   1.5,
			VolatilityPenalty: 15,
			CThreshold:        60,
			BThreshold:        80,
		},
		Discovery: DiscoveryMap{
			LifeStages: map[string][]string{
				"single":          {"electronics", "home"},
				"casal":           {"home", "kitchen"},
				"familia_pequena": {"baby", "kitchen", "cleaning"},
				"familia_grande":  {"groceries", "cleaning", "kitchen"},
				"republica":       {"groceries", "cleaning"},
			},
			Tags: map[string][]string{
				"premium":         {"electronics"},
				"custo_beneficio": {"groceries"},
				"preco_baixo":     {"groceries", "cleaning"},
				"sustentavel":     {"home"},
				"organico":        {"groceries"},
				"local":           {"groceries"},
			},
		},
	}
}

// LoadHeuristics reads a YAML heuristics file. An empty path returns the defaults;
// keys absent from the file keep their default values.
func LoadHeuristics(path string) (Heuristics, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("failed to read heuristics file: %w", err)
	}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("failed to parse heuristics file: %w", err)
	}
	if err := h.Risk.validate(); err != nil {
		return h, fmt.Errorf("invalid heuristics file %s: %w", path, err)
	}
	return h, nil
}

func (r RiskHeuristics) validate() error {
	if r.VolatilityWindow < 2 {
		return fmt.Errorf("volatility_window must be at least 2, got %d", r.VolatilityWindow)
	}
	if r.VolatilityRatio <= 1 {
		return fmt.Errorf("volatility_ratio must be greater than 1, got %v", r.VolatilityRatio)
	}
	if r.ShopPenalty < 0 || r.VolatilityPenalty < 0 {
		return fmt.Errorf("penalties must not be negative, got shop_penalty %d volatility_penalty %d",
			r.ShopPenalty, r.VolatilityPenalty)
	}
	for name, v := range map[string]int{"c_threshold": r.CThreshold, "b_threshold": r.BThreshold} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100, got %d", name, v)
		}
	}
	if r.CThreshold > r.BThreshold {
		return fmt.Errorf("c_threshold %d exceeds b_threshold %d", r.CThreshold, r.BThreshold)
	}
	return nil
}

// Categories returns the sorted, lower-cased, de-duplicated categories inferred
// from a life stage and preference tags.
func (d DiscoveryMap) Categories(lifeStage string, tags []string) []string {
	seen := make(map[string]bool)
	add := func(cats []string) {
		for _, c := range cats {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" {
				seen[c] = true
			}
		}
	}

	add(d.LifeStages[lifeStage])
	for _, t := range tags {
		add(d.Tags[t])
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
