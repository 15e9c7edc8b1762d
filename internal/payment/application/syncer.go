package application

import (
	"context"
	"errors"
	"strings"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

// Syncer polls the gateway for a payment and feeds the answer through the
// engine exactly as if it had arrived by webhook.
type Syncer struct {
	gateway Gateway
	engine  *Engine
}

func NewSyncer(gateway Gateway, engine *Engine) *Syncer {
	return &Syncer{gateway: gateway, engine: engine}
}

func (s *Syncer) Sync(ctx context.Context, gatewayID string) (Result, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return Result{}, &ValidationError{Field: "GatewayPaymentID", Reason: "required"}
	}
	data, err := s.gateway.PaymentStatus(ctx, gatewayID)
	if err != nil {
		if errors.Is(err, ErrGatewayPaymentMissing) {
			return Result{}, err
		}
		return Result{}, errors.Join(ErrGatewayUnavailable, err)
	}
	if data.ID == "" {
		data.ID = domain.GatewayID(gatewayID)
	}
	return s.engine.ApplyNotification(ctx, data.Notification())
}
