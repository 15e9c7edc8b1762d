//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	orderpg "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/storefront-reconciler/internal/testenv"
	"github.com/dmehra2102/storefront-reconciler/pkg/logging"
)

func TestEngineOnPostgres(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Postgres(t)
	require.NoError(t, orderpg.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool), "migrations are repeatable")

	log := logging.Discard()
	orders := orderpg.NewRepository(log, pool)
	payments := postgres.NewRepository(log, pool)
	engine := application.NewEngine(log, postgres.NewUnitOfWork(log, pool, payments, orders), application.Options{
		Normalizer: domain.NewNormalizer(nil),
	})

	order, err := orders.Create(ctx, orderdomain.NewDraft("u-1",
		[]orderdomain.OrderItem{
			{ProductID: "sku-1", ProductName: "Mug", Price: decimal.RequireFromString("42.50"), Quantity: 2},
		},
		decimal.Zero, decimal.RequireFromString("15.00"),
		orderdomain.Customer{Name: "Ana", Email: "ana@example.com"},
		orderdomain.Address{Street: "Rua A", City: "Recife", State: "PE", ZipCode: "50000", Country: "Brasil"},
	))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		got, err := orders.FindByExternalReference(ctx, order.ExternalReference)
		require.NoError(t, err)
		assert.Equal(t, order.ID, got.ID)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("100")))
		assert.Equal(t, "Ana", got.Customer.Name)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 2, got.Items[0].Quantity)

		mine, err := orders.ListByUser(ctx, "u-1")
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		_, err = orders.FindByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, orderdomain.ErrNotFound)
	})

	t.Run("notification is applied once", func(t *testing.T) {
		n := domain.Notification{
			GatewayPaymentID:  "1001",
			RawStatus:         "approved",
			ExternalReference: order.ExternalReference,
			TransactionAmount: decimal.RequireFromString("100"),
		}
		res, err := engine.ApplyNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, application.OutcomeCreated, res.Outcome)
		assert.Equal(t, orderdomain.StatusProcessing, res.Order.Status)

		again, err := engine.ApplyNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, application.OutcomeUnchanged, again.Outcome)
		assert.False(t, again.OrderUpdated)

		var events int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM outbox WHERE aggregate_id = $1 AND type = $2`,
			order.ID, orderdomain.EventOrderStatusChanged).Scan(&events))
		assert.Equal(t, 1, events)
	})

	t.Run("unknown reference writes nothing", func(t *testing.T) {
		_, err := engine.ApplyNotification(ctx, domain.Notification{
			GatewayPaymentID: "1002", RawStatus: "approved", ExternalReference: "no_such_order",
		})
		require.ErrorIs(t, err, application.ErrOrderNotFound)
		_, err = payments.FindByGatewayID(ctx, "1002")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent notifications leave one consistent row", func(t *testing.T) {
		var wg sync.WaitGroup
		for _, st := range []string{"rejected", "refunded", "approved", "cancelled"} {
			wg.Add(1)
			go func(st string) {
				defer wg.Done()
				_, err := engine.ApplyNotification(ctx, domain.Notification{
					GatewayPaymentID: "1003", RawStatus: st, ExternalReference: order.ExternalReference,
				})
				assert.NoError(t, err)
			}(st)
		}
		wg.Wait()

		var rows int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM payments WHERE gateway_id = '1003'`).Scan(&rows))
		assert.Equal(t, 1, rows)

		p, err := payments.FindByGatewayID(ctx, "1003")
		require.NoError(t, err)
		o, err := orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DeriveOrderStatus(p.Status), o.Status)
		assert.Equal(t, orderdomain.PaymentStatus(p.Status), o.PaymentStatus)
	})

	t.Run("shipped order survives a redelivered notification", func(t *testing.T) {
		o := newOrder(t, orders)
		n := domain.Notification{GatewayPaymentID: "1004", RawStatus: "approved", ExternalReference: o.ExternalReference}
		_, err := engine.ApplyNotification(ctx, n)
		require.NoError(t, err)
		_, err = engine.TransitionOrder(ctx, o.ID, orderdomain.StatusShipped)
		require.NoError(t, err)

		res, err := engine.ApplyNotification(ctx, n)
		require.NoError(t, err)
		assert.False(t, res.OrderUpdated)
		assert.Equal(t, orderdomain.StatusShipped, res.Order.Status)

		var events int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE aggregate_id = $1`, o.ID).Scan(&events))
		assert.Equal(t, 2, events)
	})
}

// The pool is capped at four connections. Each notification must finish on
// the one connection its scope holds, or these calls would starve each other.
func TestEngineOnPostgres_ManyOrdersOnSmallPool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool := testenv.Postgres(t)
	require.EqualValues(t, 4, pool.Config().MaxConns)
	require.NoError(t, orderpg.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool))

	log := logging.Discard()
	orders := orderpg.NewRepository(log, pool)
	payments := postgres.NewRepository(log, pool)
	engine := application.NewEngine(log, postgres.NewUnitOfWork(log, pool, payments, orders), application.Options{
		Normalizer: domain.NewNormalizer(nil),
	})

	const workers = 12
	refs := make([]string, workers)
	for i := range refs {
		refs[i] = newOrder(t, orders).ExternalReference
	}

	callCtx, callCancel := context.WithTimeout(ctx, 30*time.Second)
	defer callCancel()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, st := range []string{"pending", "approved"} {
				_, err := engine.ApplyNotification(callCtx, domain.Notification{
					GatewayPaymentID:  fmt.Sprintf("pool-%d", i),
					RawStatus:         st,
					ExternalReference: refs[i],
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, callCtx.Err(), "notifications stalled on the pool")

	for _, ref := range refs {
		o, err := orders.FindByExternalReference(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, orderdomain.StatusProcessing, o.Status)
	}
}

func newOrder(t *testing.T, orders *orderpg.Repository) orderdomain.Order {
	t.Helper()
	o, err := orders.Create(context.Background(), orderdomain.NewDraft("",
		[]orderdomain.OrderItem{{ProductID: "sku-1", ProductName: "Mug", Price: decimal.NewFromInt(10), Quantity: 1}},
		decimal.Zero, decimal.Zero, orderdomain.Customer{Name: "Ana", Email: "ana@example.com"}, orderdomain.Address{}))
	require.NoError(t, err)
	return o
}

const defaultLease = 5 * time.Second

func TestOutboxStoreLeasing(t *testing.T) {
	ctx := context.Background()
	pool := testenv.Postgres(t)
	require.NoError(t, orderpg.Migrate(ctx, pool))

	log := logging.Discard()
	orders := orderpg.NewRepository(log, pool)
	store := orderpg.NewOutboxStore(log, pool)

	o, err := orders.Create(ctx, orderdomain.NewDraft("", []orderdomain.OrderItem{
		{ProductID: "sku-1", ProductName: "Mug", Price: decimal.NewFromInt(10), Quantity: 1},
	}, decimal.Zero, decimal.Zero, orderdomain.Customer{Name: "Ana", Email: "ana@example.com"}, orderdomain.Address{}))
	require.NoError(t, err)
	_, err = orders.UpdateStatus(ctx, o.ID, orderdomain.StatusCancelled, "")
	require.NoError(t, err)

	batch, err := store.LockBatch(ctx, "relay-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, o.ID, batch[0].AggregateID)

	// a zero lease has already expired, so another relay may take over
	stolen, err := store.LockBatch(ctx, "relay-b", 10, defaultLease)
	require.NoError(t, err)
	require.Len(t, stolen, 1)

	require.NoError(t, store.MarkSent(ctx, "relay-b", []int64{stolen[0].ID}))
	empty, err := store.LockBatch(ctx, "relay-a", 10, defaultLease)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
