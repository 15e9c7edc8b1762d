package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/pkg/outbox"
	"github.com/dmehra2102/storefront-reconciler/pkg/tracing"
)

// DB is what the repository needs from *pgxpool.Pool or pgx.Tx. Begin on a
// pgx.Tx opens a savepoint, so multi-statement writes nest inside a caller's
// transaction.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	log *slog.Logger
	db  DB
	now func() time.Time
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, db: pool, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a repository whose statements run on tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{log: r.log, db: tx, now: r.now}
}

const orderColumns = `id, external_reference, user_id, subtotal, discount, shipping, total,
	customer, shipping_address, status, payment_status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, d domain.Draft) (domain.Order, error) {
	o := domain.NewOrder(d, r.now())

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.ExternalReference, o.UserID, o.Subtotal, o.Discount, o.Shipping, o.Total,
		o.Customer, o.Address, o.Status, o.PaymentStatus, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (id, order_id, product_id, product_name, price, quantity, image, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, o.ID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.Image, i)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, fmt.Errorf("insert order items: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	r.log.Info("order created", "order_id", o.ID, "external_reference", o.ExternalReference, "total", o.Total.StringFixed(2))
	return o, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id)
}

func (r *Repository) FindByExternalReference(ctx context.Context, ref string) (domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_reference = $1`, ref)
}

// UpdateStatus writes the new status and an OrderStatusChanged outbox row in
// one transaction.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := scanOrder(tx.QueryRow(ctx, `UPDATE orders
		SET status = $2, payment_status = COALESCE(NULLIF($3, ''), payment_status), updated_at = $4
		WHERE id::text = $1
		RETURNING `+orderColumns,
		id, status, string(paymentStatus), r.now()))
	if err != nil {
		return domain.Order{}, err
	}

	payload, err := json.Marshal(domain.OrderStatusChanged{
		OrderID:           o.ID,
		ExternalReference: o.ExternalReference,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		ChangedAt:         o.UpdatedAt,
	})
	if err != nil {
		return domain.Order{}, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		"order", o.ID, domain.EventOrderStatusChanged, payload,
		map[string]string{"content-type": "application/json"}, tracing.Traceparent(ctx), outbox.StatusPending)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert outbox: %w", err)
	}

	if o.Items, err = loadItems(ctx, tx, o.ID); err != nil {
		return domain.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = loadItems(ctx, r.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return domain.Order{}, err
	}
	if o.Items, err = loadItems(ctx, r.db, o.ID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, product_name, price, quantity, image
		FROM order_items WHERE order_id::text = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Price, &it.Quantity, &it.Image); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ExternalReference, &o.UserID, &o.Subtotal, &o.Discount, &o.Shipping, &o.Total,
		&o.Customer, &o.Address, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}
