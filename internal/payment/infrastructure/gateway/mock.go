package gateway

import (
	"context"
	"sync"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

// Mock answers lookups from an in-memory table. It backs GATEWAY_MODE=mock.
type Mock struct {
	mu       sync.RWMutex
	payments map[string]domain.NotificationData
}

func NewMock() *Mock {
	return &Mock{payments: make(map[string]domain.NotificationData)}
}

// Put records or replaces the gateway's view of a payment.
func (m *Mock) Put(data domain.NotificationData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[string(data.ID)] = data
}

func (m *Mock) PaymentStatus(_ context.Context, gatewayID string) (domain.NotificationData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.payments[gatewayID]
	if !ok {
		return domain.NotificationData{}, application.ErrGatewayPaymentMissing
	}
	return data, nil
}
