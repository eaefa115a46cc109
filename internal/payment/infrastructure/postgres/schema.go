package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id                TEXT        PRIMARY KEY,
	order_id          TEXT        NOT NULL,
	session_id        TEXT        NOT NULL UNIQUE,
	payment_intent_id TEXT        NOT NULL DEFAULT '',
	amount            BIGINT      NOT NULL CHECK (amount > 0),
	status            TEXT        NOT NULL,
	customer_email    TEXT        NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_order_id_idx ON payments (order_id, created_at DESC);
`

// Migrate creates the payments table and the outbox.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema+outbox.Schema); err != nil {
		return fmt.Errorf("migrate payment schema: %w", err)
	}
	return nil
}
