package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

const uniqueViolation = "23505"

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
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

const paymentColumns = `id, gateway_id, order_id, status, status_detail, payment_method_id, payment_type_id,
	transaction_amount, currency, description, created_at, updated_at`

// Create inserts a payment. If another writer inserted the same gateway id
// first, the stored row is returned instead. The insert runs in its own
// transaction or savepoint so a unique violation does not abort the caller's.
func (r *Repository) Create(ctx context.Context, d domain.Draft) (domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := r.now()
	p, err := scanPayment(tx.QueryRow(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING `+paymentColumns,
		uuid.NewString(), d.GatewayID, d.OrderID, d.Status, d.StatusDetail, d.PaymentMethodID, d.PaymentTypeID,
		d.TransactionAmount, d.Currency, d.Description, now))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		_ = tx.Rollback(ctx)
		r.log.Warn("payment already recorded by a concurrent writer", "gateway_id", d.GatewayID)
		return r.FindByGatewayID(ctx, d.GatewayID)
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (domain.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id::text = $1`, id))
}

func (r *Repository) FindByGatewayID(ctx context.Context, gatewayID string) (domain.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_id = $1`, gatewayID))
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status, detail string) (domain.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `UPDATE payments
		SET status = $2, status_detail = COALESCE(NULLIF($3, ''), status_detail), updated_at = $4
		WHERE id::text = $1
		RETURNING `+paymentColumns,
		id, status, detail, r.now()))
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.GatewayID, &p.OrderID, &p.Status, &p.StatusDetail, &p.PaymentMethodID, &p.PaymentTypeID,
		&p.TransactionAmount, &p.Currency, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
