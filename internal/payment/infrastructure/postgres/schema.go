package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// payments.order_id references orders, so the order schema must exist first.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id                  uuid PRIMARY KEY,
	gateway_id          text NOT NULL UNIQUE,
	order_id            uuid NOT NULL REFERENCES orders(id),
	status              text NOT NULL,
	status_detail       text NOT NULL DEFAULT '',
	payment_method_id   text NOT NULL DEFAULT '',
	payment_type_id     text NOT NULL DEFAULT '',
	transaction_amount  numeric(12,2) NOT NULL DEFAULT 0,
	currency            char(3) NOT NULL,
	description         text NOT NULL DEFAULT '',
	created_at          timestamptz NOT NULL,
	updated_at          timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_order_idx ON payments (order_id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
