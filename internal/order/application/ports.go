package application

import (
	"context"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
)

// OrderRepository is implemented by the memory and postgres stores. Finders
// return domain.ErrNotFound when nothing matches.
type OrderRepository interface {
	Create(ctx context.Context, d domain.Draft) (domain.Order, error)
	FindByID(ctx context.Context, id string) (domain.Order, error)
	FindByExternalReference(ctx context.Context, ref string) (domain.Order, error)
	// UpdateStatus sets status and, when paymentStatus is non-empty, the
	// mirrored payment status.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}
