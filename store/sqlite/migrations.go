package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the storefront store (SQLite).
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
    price_amount      INTEGER NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT 'inr',
    compare_at_amount INTEGER,
    image_url         TEXT NOT NULL DEFAULT '',
    active            INTEGER NOT NULL DEFAULT 1,
    metadata          TEXT NOT NULL DEFAULT '{}',
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
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
    percentage      INTEGER NOT NULL DEFAULT 0,
    amount_minor    INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT '',
    min_order_minor INTEGER,
    max_uses        INTEGER,
    current_uses    INTEGER NOT NULL DEFAULT 0,
    active          INTEGER NOT NULL DEFAULT 1,
    valid_until     TEXT,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
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
    items            TEXT NOT NULL DEFAULT '[]',
    subtotal_minor   INTEGER NOT NULL DEFAULT 0,
    discount_minor   INTEGER NOT NULL DEFAULT 0,
    total_minor      INTEGER NOT NULL DEFAULT 0,
    coupon_code      TEXT NOT NULL DEFAULT '',
    customer_email   TEXT NOT NULL DEFAULT '',
    gateway_order_id TEXT NOT NULL DEFAULT '',
    payment_ref      TEXT NOT NULL DEFAULT '',
    confirmed_at     TEXT,
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
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
    amount_minor     INTEGER NOT NULL DEFAULT 0,
    currency         TEXT NOT NULL DEFAULT 'inr',
    status           TEXT NOT NULL DEFAULT 'pending',
    provider         TEXT NOT NULL DEFAULT '',
    gateway_order_id TEXT NOT NULL DEFAULT '',
    transaction_ref  TEXT NOT NULL DEFAULT '',
    failure_reason   TEXT NOT NULL DEFAULT '',
    paid_at          TEXT,
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
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
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
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
		&migrate.Migration{
			Name:    "create_storefront_confirm_trigger",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				// Confirming an order completes its payment and redeems its
				// coupon inside the same statement.
				_, err := exec.Exec(ctx, `
CREATE TRIGGER IF NOT EXISTS trg_storefront_order_confirmed
AFTER UPDATE OF status ON storefront_orders
WHEN NEW.status = 'confirmed' AND OLD.status <> 'confirmed'
BEGIN
    UPDATE storefront_payments
       SET status = 'completed',
           transaction_ref = NEW.payment_ref,
           paid_at = NEW.confirmed_at,
           updated_at = NEW.updated_at
     WHERE order_id = NEW.id;

    UPDATE storefront_coupons
       SET current_uses = current_uses + 1,
           updated_at = NEW.updated_at
     WHERE NEW.coupon_code <> '' AND code = NEW.coupon_code;
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TRIGGER IF EXISTS trg_storefront_order_confirmed`)
				return err
			},
		},
	)
}
