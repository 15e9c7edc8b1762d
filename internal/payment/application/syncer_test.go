package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

type stubGateway struct {
	data  domain.NotificationData
	err   error
	asked string
}

func (g *stubGateway) PaymentStatus(_ context.Context, id string) (domain.NotificationData, error) {
	g.asked = id
	return g.data, g.err
}

func TestSyncer_AppliesGatewayState(t *testing.T) {
	f := newFixture(t)
	amount := decimal.NewFromInt(100)
	gw := &stubGateway{data: domain.NotificationData{
		Status:            "approved",
		ExternalReference: f.order.ExternalReference,
		TransactionAmount: &amount,
	}}

	res, err := NewSyncer(gw, f.engine).Sync(context.Background(), " 42 ")
	require.NoError(t, err)
	assert.Equal(t, "42", gw.asked)
	assert.Equal(t, "42", res.Payment.GatewayID)
	assert.Equal(t, orderdomain.StatusProcessing, res.Order.Status)
	assert.True(t, res.Payment.TransactionAmount.Equal(amount))
}

func TestSyncer_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := NewSyncer(&stubGateway{}, f.engine).Sync(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewSyncer(&stubGateway{err: ErrGatewayPaymentMissing}, f.engine).Sync(context.Background(), "7")
	assert.ErrorIs(t, err, ErrGatewayPaymentMissing)
	assert.NotErrorIs(t, err, ErrGatewayUnavailable)

	timeout := errors.New("i/o timeout")
	_, err = NewSyncer(&stubGateway{err: timeout}, f.engine).Sync(context.Background(), "7")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.ErrorIs(t, err, timeout)

	assert.Equal(t, 0, f.payments.Len())
}
