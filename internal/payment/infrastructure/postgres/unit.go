package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	orderpg "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
)

// UnitOfWork runs each scope in one transaction on one pooled connection.
// Keys are taken with transaction-level advisory locks, released by the
// commit or rollback that ends the scope.
type UnitOfWork struct {
	log      *slog.Logger
	pool     *pgxpool.Pool
	payments *Repository
	orders   *orderpg.Repository
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool, payments *Repository, orders *orderpg.Repository) *UnitOfWork {
	return &UnitOfWork{log: log, pool: pool, payments: payments, orders: orders}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s application.Scope) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	s := &txScope{
		tx:       tx,
		payments: u.payments.WithTx(tx),
		orders:   u.orders.WithTx(tx),
	}
	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		u.log.Error("unit of work commit failed", "err", err)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txScope struct {
	tx       pgx.Tx
	payments *Repository
	orders   *orderpg.Repository
}

// Lock blocks until the key is free. Relocking a held key returns at once.
func (s *txScope) Lock(ctx context.Context, key string) error {
	if _, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}

func (s *txScope) Payments() application.PaymentRepository { return s.payments }
func (s *txScope) Orders() application.OrderRepository     { return s.orders }
