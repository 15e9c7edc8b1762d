package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                 uuid PRIMARY KEY,
	external_reference text NOT NULL UNIQUE,
	user_id            text NOT NULL DEFAULT '',
	subtotal           numeric(12,2) NOT NULL,
	discount           numeric(12,2) NOT NULL DEFAULT 0,
	shipping           numeric(12,2) NOT NULL DEFAULT 0,
	total              numeric(12,2) NOT NULL,
	customer           jsonb NOT NULL,
	shipping_address   jsonb NOT NULL,
	status             text NOT NULL,
	payment_status     text NOT NULL,
	created_at         timestamptz NOT NULL,
	updated_at         timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	id           uuid PRIMARY KEY,
	order_id     uuid NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id   text NOT NULL,
	product_name text NOT NULL,
	price        numeric(12,2) NOT NULL,
	quantity     integer NOT NULL CHECK (quantity > 0),
	image        text NOT NULL DEFAULT '',
	position     integer NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id, position);

CREATE TABLE IF NOT EXISTS outbox (
	id             bigserial PRIMARY KEY,
	aggregate_type text NOT NULL,
	aggregate_id   text NOT NULL,
	type           text NOT NULL,
	payload        jsonb NOT NULL,
	headers        jsonb NOT NULL DEFAULT '{}',
	traceparent    text NOT NULL DEFAULT '',
	status         text NOT NULL DEFAULT 'pending',
	relay_id       text,
	lease_until    timestamptz,
	retry_count    integer NOT NULL DEFAULT 0,
	last_error     text,
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, id);
`

// Migrate creates the order and outbox tables. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
