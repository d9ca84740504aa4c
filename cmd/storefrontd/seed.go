package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/types"
)

// Seed is the catalog fixture format. Prices are in major units.
type Seed struct {
	Products []SeedProduct `yaml:"products"`
	Coupons  []SeedCoupon  `yaml:"coupons"`
}

type SeedProduct struct {
	Name           string   `yaml:"name"`
	Slug           string   `yaml:"slug"`
	Description    string   `yaml:"description"`
	Category       string   `yaml:"category"`
	Price          float64  `yaml:"price"`
	CompareAtPrice *float64 `yaml:"compare_at_price"`
	ImageURL       string   `yaml:"image_url"`
	Inactive       bool     `yaml:"inactive"`
}

type SeedCoupon struct {
	Code       string     `yaml:"code"`
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Value      float64    `yaml:"value"`
	MinOrder   *float64   `yaml:"min_order"`
	MaxUses    *int       `yaml:"max_uses"`
	ValidUntil *time.Time `yaml:"valid_until"`
	Inactive   bool       `yaml:"inactive"`
}

func readSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &s, nil
}

// apply creates every product and coupon not already present. Existing
// records are left alone so restarts are safe.
func (s *Seed) apply(ctx context.Context, sf *storefront.Storefront, logger *slog.Logger) error {
	st := sf.Store()
	cur := sf.Currency()

	var created int
	for _, sp := range s.Products {
		if _, err := st.GetProductBySlug(ctx, sp.Slug); err == nil {
			continue
		} else if !storefront.IsNotFound(err) {
			return err
		}
		p := &product.Product{
			Name:        sp.Name,
			Slug:        sp.Slug,
			Description: sp.Description,
			Category:    sp.Category,
			Price:       types.FromMajor(sp.Price, cur),
			ImageURL:    sp.ImageURL,
			Active:      !sp.Inactive,
		}
		if sp.CompareAtPrice != nil {
			m := types.FromMajor(*sp.CompareAtPrice, cur)
			p.CompareAtPrice = &m
		}
		if err := sf.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", sp.Slug, err)
		}
		created++
	}

	for _, sc := range s.Coupons {
		if _, err := st.GetCouponByCode(ctx, coupon.Normalize(sc.Code)); err == nil {
			continue
		} else if !storefront.IsNotFound(err) {
			return err
		}
		c := &coupon.Coupon{
			Code:       sc.Code,
			Name:       sc.Name,
			Type:       coupon.Type(sc.Type),
			MaxUses:    sc.MaxUses,
			ValidUntil: sc.ValidUntil,
			Active:     !sc.Inactive,
		}
		if c.Type == coupon.TypePercentage {
			c.Percentage = int(sc.Value)
		} else {
			c.Amount = types.FromMajor(sc.Value, cur)
		}
		if sc.MinOrder != nil {
			m := types.FromMajor(*sc.MinOrder, cur)
			c.MinOrderAmount = &m
		}
		if err := sf.CreateCoupon(ctx, c); err != nil {
			return fmt.Errorf("seed coupon %s: %w", sc.Code, err)
		}
		created++
	}

	logger.Info("catalog seeded", "products", len(s.Products), "coupons", len(s.Coupons), "created", created)
	return nil
}
