package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/memory"
)

func newService() *Service {
	return NewService(memory.NewRepository(), Pricing{
		ShippingCost:   decimal.RequireFromString("15.00"),
		DefaultCountry: "Brasil",
	})
}

func validCheckout() Checkout {
	return Checkout{
		UserID: "u-1",
		Items: []CheckoutItem{
			{ProductID: "sku-1", Name: "Mug", Price: decimal.RequireFromString("42.50"), Quantity: 2},
		},
		Customer: CheckoutCustomer{Name: "Ana", Email: "ana@example.com"},
		Address:  CheckoutAddress{Street: "Rua A, 10", City: "Recife", State: "PE", ZipCode: "50000-000"},
	}
}

func TestPlaceOrder(t *testing.T) {
	svc := newService()
	o, err := svc.PlaceOrder(context.Background(), validCheckout())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "Brasil", o.Address.Country)
	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("85")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("100")))
	assert.Regexp(t, `^order_[0-9a-f-]{36}$`, o.ExternalReference)
	require.Len(t, o.Items, 1)
	assert.NotEmpty(t, o.Items[0].ID)
}

func TestPlaceOrder_Rejects(t *testing.T) {
	cases := map[string]func(*Checkout){
		"no items":          func(c *Checkout) { c.Items = nil },
		"zero quantity":     func(c *Checkout) { c.Items[0].Quantity = 0 },
		"negative price":    func(c *Checkout) { c.Items[0].Price = decimal.NewFromInt(-1) },
		"bad email":         func(c *Checkout) { c.Customer.Email = "nope" },
		"missing city":      func(c *Checkout) { c.Address.City = "" },
		"negative discount": func(c *Checkout) { c.Discount = decimal.NewFromInt(-5) },
		"discount too big":  func(c *Checkout) { c.Discount = decimal.NewFromInt(1000) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validCheckout()
			mutate(&c)
			_, err := newService().PlaceOrder(context.Background(), c)
			assert.ErrorIs(t, err, ErrInvalidCheckout)
		})
	}
}

func TestGet_Ownership(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	o, err := svc.PlaceOrder(ctx, validCheckout())
	require.NoError(t, err)

	_, err = svc.Get(ctx, o.ID, "u-1")
	assert.NoError(t, err)
	_, err = svc.Get(ctx, o.ID, "")
	assert.NoError(t, err)
	_, err = svc.Get(ctx, o.ID, "u-2")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, "missing", "u-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	for i := 0; i < 2; i++ {
		_, err := svc.PlaceOrder(ctx, validCheckout())
		require.NoError(t, err)
	}
	guest := validCheckout()
	guest.UserID = ""
	_, err := svc.PlaceOrder(ctx, guest)
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := svc.ListForUser(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}
