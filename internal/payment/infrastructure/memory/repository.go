package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

// Repository keeps payments in memory, indexed by id and by gateway id.
// Uniqueness of gateway ids is the engine's job; Create does not check it.
type Repository struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Payment
	byGateway map[string]string
	now       func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		byID:      make(map[string]*domain.Payment),
		byGateway: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Create(_ context.Context, d domain.Draft) (domain.Payment, error) {
	now := r.now()
	p := domain.Payment{
		ID:                uuid.NewString(),
		GatewayID:         d.GatewayID,
		OrderID:           d.OrderID,
		Status:            d.Status,
		StatusDetail:      d.StatusDetail,
		PaymentMethodID:   d.PaymentMethodID,
		PaymentTypeID:     d.PaymentTypeID,
		TransactionAmount: d.TransactionAmount,
		Currency:          d.Currency,
		Description:       d.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = &p
	r.byGateway[p.GatewayID] = p.ID
	return p, nil
}

func (r *Repository) FindByID(_ context.Context, id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *p, nil
}

func (r *Repository) FindByGatewayID(_ context.Context, gatewayID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byGateway[gatewayID]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *r.byID[id], nil
}

func (r *Repository) UpdateStatus(_ context.Context, id string, status domain.Status, detail string) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	p.Status = status
	if detail != "" {
		p.StatusDetail = detail
	}
	p.UpdatedAt = r.now()
	return *p, nil
}

// Len reports how many payments are stored.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
