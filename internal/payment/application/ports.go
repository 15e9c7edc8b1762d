package application

import (
	"context"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

// PaymentRepository finders return domain.ErrNotFound when nothing matches.
// UpdateStatus leaves the stored detail alone when detail is empty.
type PaymentRepository interface {
	Create(ctx context.Context, d domain.Draft) (domain.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (domain.Payment, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, detail string) (domain.Payment, error)
}

// OrderRepository is the slice of the order store the engine touches.
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (orderdomain.Order, error)
	FindByExternalReference(ctx context.Context, ref string) (orderdomain.Order, error)
	UpdateStatus(ctx context.Context, id string, status orderdomain.OrderStatus, paymentStatus orderdomain.PaymentStatus) (orderdomain.Order, error)
}

// KeyLocker grants an exclusive scope per key. unlock must be called once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Scope is one unit of work. Keys locked through it stay held until the unit
// ends, and its repositories read and write inside the unit.
type Scope interface {
	Lock(ctx context.Context, key string) error
	Payments() PaymentRepository
	Orders() OrderRepository
}

// UnitOfWork runs fn in a fresh Scope. A non-nil error from fn discards
// whatever the store can roll back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Scope) error) error
}

// Gateway looks up the current state of a payment at the payment provider.
type Gateway interface {
	PaymentStatus(ctx context.Context, gatewayID string) (domain.NotificationData, error)
}
