package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/store/memory"
	"github.com/xraph/storefront/types"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestLoadConfig(t *testing.T) {
	file := writeFile(t, "storefront.yaml", `
addr: ":9000"
log_level: debug
currency: usd
shutdown_timeout: 5s
store:
  driver: firestore
  project_id: tapcart-prod
gateway:
  key_id: rzp_live_abc
kafka:
  brokers: k1:9092
`)

	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, c Config)
	}{
		{
			name: "defaults with env secret",
			env:  map[string]string{"RAZORPAY_KEY_SECRET": "s3cret"},
			check: func(t *testing.T, c Config) {
				if c.Addr != ":8080" || c.Store.Driver != "memory" || c.Currency != "inr" {
					t.Errorf("got %+v", c)
				}
				if c.Gateway.KeySecret != "s3cret" {
					t.Errorf("KeySecret = %q", c.Gateway.KeySecret)
				}
			},
		},
		{
			name: "file then flags",
			args: []string{"--config", file, "--addr", ":7000"},
			env:  map[string]string{"RAZORPAY_KEY_SECRET": "s3cret", "KAFKA_BROKERS": "ignored:9092"},
			check: func(t *testing.T, c Config) {
				if c.Addr != ":7000" {
					t.Errorf("Addr = %q, flag should win", c.Addr)
				}
				if c.Currency != "usd" || c.Store.ProjectID != "tapcart-prod" || c.ShutdownTimeout != 5*time.Second {
					t.Errorf("file values not applied: %+v", c)
				}
				if c.Kafka.Brokers != "k1:9092" || c.Kafka.Topic != "storefront.events" {
					t.Errorf("kafka = %+v", c.Kafka)
				}
				if c.slogLevel() != slog.LevelDebug {
					t.Errorf("level = %v", c.slogLevel())
				}
			},
		},
		{
			name:    "missing secret",
			wantErr: "gateway.key_secret or gateway.secret_name is required",
		},
		{
			name:    "firestore needs project",
			args:    []string{"--store", "firestore"},
			env:     map[string]string{"RAZORPAY_KEY_SECRET": "s"},
			wantErr: "store.project_id is required",
		},
		{
			name:    "unknown driver",
			args:    []string{"--store", "redis"},
			env:     map[string]string{"RAZORPAY_KEY_SECRET": "s"},
			wantErr: `unknown store driver "redis"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(tt.args, env(tt.env))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestSeedApply(t *testing.T) {
	path := writeFile(t, "seed.yaml", `
products:
  - name: Smart NFC Card
    slug: smart-nfc-card
    category: cards
    price: 499
    compare_at_price: 999
  - name: Retired Tag
    slug: retired-tag
    price: 99
    inactive: true
coupons:
  - code: welcome10
    type: percentage
    value: 10
  - code: flat150
    type: fixed
    value: 150
    min_order: 1000
    max_uses: 50
`)
	seed, err := readSeed(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	sf, err := storefront.New(memory.New())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for range 2 {
		if err := seed.apply(ctx, sf, logger); err != nil {
			t.Fatal(err)
		}
	}

	all, err := sf.ListProducts(ctx, product.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("products = %d, want 2 after reseeding", len(all))
	}

	card, err := sf.GetProductBySlug(ctx, "smart-nfc-card")
	if err != nil {
		t.Fatal(err)
	}
	if !card.Price.Equal(types.INR(49900)) || card.DiscountPercent() != 50 {
		t.Errorf("card price = %s discount = %d", card.Price, card.DiscountPercent())
	}
	if _, err := sf.GetProductBySlug(ctx, "retired-tag"); !storefront.IsNotFound(err) {
		t.Errorf("inactive product lookup err = %v", err)
	}

	flat, err := sf.Store().GetCouponByCode(ctx, "FLAT150")
	if err != nil {
		t.Fatal(err)
	}
	if !flat.Amount.Equal(types.INR(15000)) || flat.MinOrderAmount == nil || *flat.MaxUses != 50 {
		t.Errorf("flat150 = %+v", flat)
	}
}
