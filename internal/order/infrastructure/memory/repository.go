package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
)

// Repository keeps orders in process memory. Every read returns a copy, so
// callers never observe a half-applied update and a read that starts after
// UpdateStatus returns sees its result.
type Repository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Order
	byRef map[string]string
	now   func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		byID:  make(map[string]*domain.Order),
		byRef: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Create(_ context.Context, d domain.Draft) (domain.Order, error) {
	o := domain.NewOrder(d, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[o.ID] = &o
	r.byRef[o.ExternalReference] = o.ID
	return clone(o), nil
}

func (r *Repository) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return clone(*o), nil
}

func (r *Repository) FindByExternalReference(ctx context.Context, ref string) (domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byRef[ref]
	r.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	o.Status = status
	if paymentStatus != "" {
		o.PaymentStatus = paymentStatus
	}
	o.UpdatedAt = r.now()
	return clone(*o), nil
}

func (r *Repository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range r.byID {
		if o.UserID == userID {
			out = append(out, clone(*o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func clone(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
