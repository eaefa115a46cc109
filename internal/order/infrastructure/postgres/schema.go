package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT        PRIMARY KEY,
	user_email   TEXT        NOT NULL,
	total_amount BIGINT      NOT NULL CHECK (total_amount >= 0),
	status       TEXT        NOT NULL,
	order_date   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_email_idx ON orders (user_email, order_date DESC);

CREATE TABLE IF NOT EXISTS order_items (
	order_id          TEXT   NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	line_no           INT    NOT NULL,
	product_id        BIGINT NOT NULL,
	quantity          INT    NOT NULL CHECK (quantity > 0),
	price_at_purchase BIGINT NOT NULL,
	item_subtotal     BIGINT NOT NULL,
	PRIMARY KEY (order_id, line_no)
);
`

// Migrate creates the order tables and the outbox. It is safe to run twice.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema+outbox.Schema); err != nil {
		return fmt.Errorf("migrate order schema: %w", err)
	}
	return nil
}
