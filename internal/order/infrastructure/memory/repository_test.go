package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
)

func draft(userID string) domain.Draft {
	return domain.NewDraft(userID,
		[]domain.OrderItem{{ProductID: "sku-1", ProductName: "Mug", Price: decimal.NewFromInt(20), Quantity: 2}},
		decimal.Zero, decimal.NewFromInt(15),
		domain.Customer{Name: "Ana", Email: "ana@example.com"},
		domain.Address{Street: "Rua A", City: "Recife", State: "PE", ZipCode: "50000", Country: "Brasil"},
	)
}

func TestRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()

	o, err := r.Create(ctx, draft("u1"))
	require.NoError(t, err)

	byID, err := r.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ExternalReference, byID.ExternalReference)
	assert.True(t, byID.Total.Equal(decimal.NewFromInt(55)))

	byRef, err := r.FindByExternalReference(ctx, o.ExternalReference)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byRef.ID)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindByExternalReference(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	o, err := r.Create(ctx, draft(""))
	require.NoError(t, err)

	updated, err := r.UpdateStatus(ctx, o.ID, domain.StatusProcessing, "approved")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)
	assert.Equal(t, domain.PaymentStatus("approved"), updated.PaymentStatus)

	updated, err = r.UpdateStatus(ctx, o.ID, domain.StatusShipped, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatus("approved"), updated.PaymentStatus, "empty payment status leaves it untouched")

	_, err = r.UpdateStatus(ctx, "missing", domain.StatusShipped, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	o, err := r.Create(ctx, draft(""))
	require.NoError(t, err)

	o.Items[0].ProductName = "changed"
	o.Status = domain.StatusDelivered

	stored, err := r.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", stored.Items[0].ProductName)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first, _ := r.Create(ctx, draft("u1"))
	_, _ = r.Create(ctx, draft("u2"))
	second, _ := r.Create(ctx, draft("u1"))

	list, err := r.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
