// Package seed loads catalog and household fixtures into the store.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
)

// Fixture is the on-disk seed document. YAML and TOML share the field names.
type Fixture struct {
	Shops      []string    `yaml:"shops" toml:"shops"`
	Products   []Product   `yaml:"products" toml:"products"`
	Offers     []Offer     `yaml:"offers" toml:"offers"`
	Households []Household `yaml:"households" toml:"households"`
}

type Product struct {
	ID       string `yaml:"id" toml:"id"`
	Name     string `yaml:"name" toml:"name"`
	Brand    string `yaml:"brand" toml:"brand"`
	EAN      string `yaml:"ean" toml:"ean"`
	Category string `yaml:"category" toml:"category"`
}

type Offer struct {
	ID           string  `yaml:"id" toml:"id"`
	Product      string  `yaml:"product" toml:"product"`
	Shop         string  `yaml:"shop" toml:"shop"` // shop name
	Price        float64 `yaml:"price" toml:"price"`
	Freight      float64 `yaml:"freight" toml:"freight"`
	DeliveryDays *int    `yaml:"delivery_days" toml:"delivery_days"`
	URL          string  `yaml:"url" toml:"url"`
	Available    *bool   `yaml:"available" toml:"available"` // default true
}

type Household struct {
	ID       string     `yaml:"id" toml:"id"`
	Name     string     `yaml:"name" toml:"name"`
	Profile  *Profile   `yaml:"profile" toml:"profile"`
	Wishes   []Wish     `yaml:"wishes" toml:"wishes"`
	HomeList []HomeItem `yaml:"home_list" toml:"home_list"`
	Missions []Mission  `yaml:"missions" toml:"missions"`
	Alerts   []Alert    `yaml:"alerts" toml:"alerts"`
}

type Profile struct {
	LifeStage        string   `yaml:"life_stage" toml:"life_stage"`
	Tags             []string `yaml:"tags" toml:"tags"`
	BudgetMonthly    *float64 `yaml:"budget_monthly" toml:"budget_monthly"`
	BudgetPerMission *float64 `yaml:"budget_per_mission" toml:"budget_per_mission"`
}

type Wish struct {
	ID       string   `yaml:"id" toml:"id"`
	Title    string   `yaml:"title" toml:"title"`
	Intent   string   `yaml:"intent" toml:"intent"`
	MinPrice *float64 `yaml:"min_price" toml:"min_price"`
	MaxPrice *float64 `yaml:"max_price" toml:"max_price"`
	Urgency  string   `yaml:"urgency" toml:"urgency"`
}

type HomeItem struct {
	Product       string `yaml:"product" toml:"product"`
	FrequencyDays int    `yaml:"frequency_days" toml:"frequency_days"`
	NextInDays    int    `yaml:"next_in_days" toml:"next_in_days"` // relative to the seed time
}

type Mission struct {
	ID     string   `yaml:"id" toml:"id"`
	Title  string   `yaml:"title" toml:"title"`
	Wishes []string `yaml:"wishes" toml:"wishes"`
}

type Alert struct {
	Type            string  `yaml:"type" toml:"type"`
	Target          float64 `yaml:"target" toml:"target"`
	Product         string  `yaml:"product" toml:"product"`
	Wish            string  `yaml:"wish" toml:"wish"`
	Channel         string  `yaml:"channel" toml:"channel"`
	CooldownMinutes int     `yaml:"cooldown_minutes" toml:"cooldown_minutes"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Shops, Products, Offers, Households, Wishes, Alerts int
}

// Load reads a fixture file. Files ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes a fixture document.
func Parse(data []byte, isTOML bool) (*Fixture, error) {
	var f Fixture
	if isTOML {
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML fixture: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	products := make(map[string]bool, len(f.Products))
	for _, p := range f.Products {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("product %q: id and name are required", p.ID)
		}
		products[p.ID] = true
	}
	for _, o := range f.Offers {
		if o.ID == "" || o.Shop == "" || !products[o.Product] {
			return fmt.Errorf("offer %q: needs an id, a shop and a known product", o.ID)
		}
		if o.Price < 0 || o.Freight < 0 {
			return fmt.Errorf("offer %q: negative price or freight", o.ID)
		}
	}
	for _, h := range f.Households {
		for _, it := range h.HomeList {
			if !products[it.Product] {
				return fmt.Errorf("household %q: home list product %q is unknown", h.ID, it.Product)
			}
		}
	}
	return nil
}

// Apply writes the fixture through an elevated store client. Offers get an
// initial price history row; shops named only by offers are created too.
func Apply(ctx context.Context, repo repository.AdminRepository, f *Fixture, now time.Time) (Summary, error) {
	var sum Summary
	now = now.UTC()

	shopIDs := make(map[string]string)
	ensureShop := func(name string) (string, error) {
		if id, ok := shopIDs[name]; ok {
			return id, nil
		}
		id, err := repo.UpsertShop(ctx, name)
		if err != nil {
			return "", err
		}
		shopIDs[name] = id
		sum.Shops++
		return id, nil
	}

	for _, name := range f.Shops {
		if _, err := ensureShop(name); err != nil {
			return sum, err
		}
	}

	for _, p := range f.Products {
		if err := repo.UpsertProduct(ctx, &model.Product{ID: p.ID, Name: p.Name, Brand: p.Brand,
			EAN: p.EAN, Category: strings.ToLower(p.Category)}); err != nil {
			return sum, err
		}
		sum.Products++
	}

	for _, o := range f.Offers {
		shopID, err := ensureShop(o.Shop)
		if err != nil {
			return sum, err
		}
		available := o.Available == nil || *o.Available
		if err := repo.UpsertOffer(ctx, &model.Offer{ID: o.ID, ProductID: o.Product, ShopID: shopID,
			Price: o.Price, Freight: o.Freight, DeliveryDays: o.DeliveryDays, IsAvailable: available,
			URL: o.URL, UpdatedAt: now}); err != nil {
			return sum, err
		}
		sum.Offers++
	}

	for _, h := range f.Households {
		if err := applyHousehold(ctx, repo, h, now, &sum); err != nil {
			return sum, fmt.Errorf("household %q: %w", h.ID, err)
		}
	}
	return sum, nil
}

func applyHousehold(ctx context.Context, repo repository.AdminRepository, h Household, now time.Time, sum *Summary) error {
	house := &model.Household{ID: h.ID, Name: h.Name, CreatedAt: now}
	if err := repo.CreateHousehold(ctx, house); err != nil {
		return err
	}
	sum.Households++

	if p := h.Profile; p != nil {
		if err := repo.UpsertHouseholdProfile(ctx, &model.HouseholdProfile{HouseholdID: house.ID,
			LifeStage: p.LifeStage, Tags: p.Tags, BudgetMonthly: p.BudgetMonthly,
			BudgetPerMission: p.BudgetPerMission}); err != nil {
			return err
		}
	}

	// Later wishes are newer so discovery order follows the file.
	for i, w := range h.Wishes {
		if err := repo.CreateWish(ctx, &model.Wish{ID: w.ID, HouseholdID: house.ID, Title: w.Title,
			Intent: w.Intent, MinPrice: w.MinPrice, MaxPrice: w.MaxPrice, Urgency: model.Urgency(w.Urgency),
			CreatedAt: now.Add(time.Duration(i) * time.Second)}); err != nil {
			return err
		}
		sum.Wishes++
	}

	for _, it := range h.HomeList {
		if err := repo.AddHomeListItem(ctx, &model.HomeListItem{HouseholdID: house.ID, ProductID: it.Product,
			FrequencyDays: it.FrequencyDays, NextSuggestedAt: now.AddDate(0, 0, it.NextInDays)}); err != nil {
			return err
		}
	}

	for _, m := range h.Missions {
		mission := &model.Mission{ID: m.ID, HouseholdID: house.ID, Title: m.Title}
		if err := repo.CreateMission(ctx, mission); err != nil {
			return err
		}
		for _, wishID := range m.Wishes {
			if err := repo.AddMissionItem(ctx, mission.ID, wishID); err != nil {
				return err
			}
		}
	}

	for _, a := range h.Alerts {
		if err := repo.CreateAlert(ctx, &model.Alert{HouseholdID: house.ID, Type: model.AlertType(a.Type),
			TargetValue: a.Target, ProductID: a.Product, WishID: a.Wish, Channel: a.Channel,
			CooldownMinutes: a.CooldownMinutes, IsActive: true}); err != nil {
			return err
		}
		sum.Alerts++
	}
	return nil
}
