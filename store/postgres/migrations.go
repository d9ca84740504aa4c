package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the storefront store.
var Migrations = migrate.NewGroup("storefront")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_storefront_products",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_products (
    id                TEXT PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    slug              TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT '',
    price_amount      BIGINT NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT 'inr',
    compare_at_amount BIGINT,
    image_url         TEXT NOT NULL DEFAULT '',
    active            BOOLEAN NOT NULL DEFAULT TRUE,
    metadata          JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_storefront_products_slug ON storefront_products (slug);
CREATE INDEX IF NOT EXISTS idx_storefront_products_category ON storefront_products (category, active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS storefront_products`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_storefront_coupons",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_coupons (
    id              TEXT PRIMARY KEY,
    code            TEXT NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT 'percentage',
    percentage      INT NOT NULL DEFAULT 0,
    amount_minor    BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT '',
    min_order_minor BIGINT,
    max_uses        INT,
    current_uses    INT NOT NULL DEFAULT 0,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    valid_until     TIMESTAMPTZ,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_storefront_coupons_code ON storefront_coupons (code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS storefront_coupons`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_storefront_orders",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_orders (
    id               TEXT PRIMARY KEY,
    session_id       TEXT NOT NULL DEFAULT '',
    receipt          TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending',
    currency         TEXT NOT NULL DEFAULT 'inr',
    items            JSONB NOT NULL DEFAULT '[]',
    subtotal_minor   BIGINT NOT NULL DEFAULT 0,
    discount_minor   BIGINT NOT NULL DEFAULT 0,
    total_minor      BIGINT NOT NULL DEFAULT 0,
    coupon_code      TEXT NOT NULL DEFAULT '',
    customer_email   TEXT NOT NULL DEFAULT '',
    gateway_order_id TEXT NOT NULL DEFAULT '',
    payment_ref      TEXT NOT NULL DEFAULT '',
    confirmed_at     TIMESTAMPTZ,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_storefront_orders_session ON storefront_orders (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_storefront_orders_status ON storefront_orders (status);
CREATE INDEX IF NOT EXISTS idx_storefront_orders_gateway ON storefront_orders (gateway_order_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS storefront_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_storefront_payments",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_payments (
    id               TEXT PRIMARY KEY,
    order_id         TEXT NOT NULL REFERENCES storefront_orders (id),
    amount_minor     BIGINT NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT 'inr',
    status           TEXT NOT NULL DEFAULT 'pending',
    provider         TEXT NOT NULL DEFAULT '',
    gateway_order_id TEXT NOT NULL DEFAULT '',
    transaction_ref  TEXT NOT NULL DEFAULT '',
    failure_reason   TEXT NOT NULL DEFAULT '',
    paid_at          TIMESTAMPTZ,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_storefront_payments_order ON storefront_payments (order_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS storefront_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_storefront_cart_state",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_cart_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_storefront_cart_state_updated ON storefront_cart_state (updated_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS storefront_cart_state`)
				return err
			},
		},
	)
}
