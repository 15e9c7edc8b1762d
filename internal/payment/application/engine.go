package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeIgnored   Outcome = "ignored"
)

// Result describes what one notification did.
type Result struct {
	Outcome      Outcome           `json:"outcome"`
	Payment      domain.Payment    `json:"payment"`
	Order        orderdomain.Order `json:"order"`
	OrderUpdated bool              `json:"orderUpdated"`
	// OrderLocked is set when the order was delivered and the derived status
	// was not applied.
	OrderLocked bool `json:"orderLocked,omitempty"`
}

type Options struct {
	Normalizer      domain.Normalizer
	DefaultCurrency string
}

// Engine turns payment notifications into payment and order state.
type Engine struct {
	log      *slog.Logger
	uow      UnitOfWork
	opts     Options
	validate *validator.Validate
}

func NewEngine(log *slog.Logger, uow UnitOfWork, opts Options) *Engine {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "BRL"
	}
	return &Engine{
		log:      log,
		uow:      uow,
		opts:     opts,
		validate: validator.New(),
	}
}

// HandleEnvelope applies webhook bodies of type "payment" and acknowledges
// every other type without touching any store.
func (e *Engine) HandleEnvelope(ctx context.Context, env domain.Envelope) (Result, error) {
	if env.Type != domain.NotificationTypePayment {
		e.log.Info("notification ignored", "type", env.Type)
		return Result{Outcome: OutcomeIgnored}, nil
	}
	return e.ApplyNotification(ctx, env.Data.Notification())
}

// ApplyNotification upserts the payment for n.GatewayPaymentID and moves the
// owning order to the status derived from the payment. Calls for the same
// gateway id are serialized; repeating a notification changes nothing.
func (e *Engine) ApplyNotification(ctx context.Context, n domain.Notification) (Result, error) {
	if err := e.check(&n); err != nil {
		return Result{}, err
	}
	status := e.opts.Normalizer.Normalize(n.RawStatus)

	var res Result
	err := e.within(ctx, "apply notification", func(ctx context.Context, s Scope) error {
		if err := s.Lock(ctx, "payment:"+n.GatewayPaymentID); err != nil {
			return storeErr("lock payment", err)
		}
		r, err := e.upsertPayment(ctx, s, n, status)
		if err != nil {
			return err
		}

		// Order writes from different gateway ids and from fulfilment share
		// this scope. The payment lock is always taken first.
		if err := s.Lock(ctx, "order:"+r.Payment.OrderID); err != nil {
			return storeErr("lock order", err)
		}
		order, err := s.Orders().FindByID(ctx, r.Payment.OrderID)
		if errors.Is(err, orderdomain.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return storeErr("find order", err)
		}

		r.Order, r.OrderUpdated, r.OrderLocked, err = e.syncOrder(ctx, s.Orders(), order, r)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.log.Info("payment notification applied",
		"gateway_id", n.GatewayPaymentID,
		"outcome", res.Outcome,
		"payment_status", res.Payment.Status,
		"order_id", res.Order.ID,
		"order_status", res.Order.Status,
		"order_updated", res.OrderUpdated,
	)
	return res, nil
}

// within runs fn in a unit of work. Errors fn returns are passed through as
// they are; failures to open or commit the unit become a StoreError.
func (e *Engine) within(ctx context.Context, op string, fn func(ctx context.Context, s Scope) error) error {
	var fnErr error
	err := e.uow.Do(ctx, func(ctx context.Context, s Scope) error {
		fnErr = fn(ctx, s)
		return fnErr
	})
	switch {
	case fnErr != nil:
		return fnErr
	case err != nil:
		return storeErr(op, err)
	}
	return nil
}

// upsertPayment is find-or-create followed by a status write only when the
// normalized status differs. A brand-new gateway id whose order is unknown
// fails with ErrOrderNotFound before anything is written.
func (e *Engine) upsertPayment(ctx context.Context, s Scope, n domain.Notification, status domain.Status) (Result, error) {
	payments := s.Payments()
	existing, err := payments.FindByGatewayID(ctx, n.GatewayPaymentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		order, err := s.Orders().FindByExternalReference(ctx, n.ExternalReference)
		if errors.Is(err, orderdomain.ErrNotFound) {
			e.log.Warn("no order for external reference",
				"gateway_id", n.GatewayPaymentID,
				"external_reference", n.ExternalReference,
			)
			return Result{}, ErrOrderNotFound
		}
		if err != nil {
			return Result{}, storeErr("find order by reference", err)
		}
		p, err := payments.Create(ctx, domain.Draft{
			GatewayID:         n.GatewayPaymentID,
			OrderID:           order.ID,
			Status:            status,
			StatusDetail:      n.RawStatusDetail,
			PaymentMethodID:   n.PaymentMethodID,
			PaymentTypeID:     n.PaymentTypeID,
			TransactionAmount: n.TransactionAmount,
			Currency:          n.Currency,
			Description:       n.Description,
		})
		if err != nil {
			return Result{}, storeErr("create payment", err)
		}
		return Result{Outcome: OutcomeCreated, Payment: p}, nil

	case err != nil:
		return Result{}, storeErr("find payment", err)

	case existing.Status == status:
		return Result{Outcome: OutcomeUnchanged, Payment: existing}, nil
	}

	p, err := payments.UpdateStatus(ctx, existing.ID, status, n.RawStatusDetail)
	if err != nil {
		return Result{}, storeErr("update payment", err)
	}
	e.log.Info("payment status changed",
		"gateway_id", n.GatewayPaymentID,
		"from", existing.Status,
		"to", p.Status,
	)
	return Result{Outcome: OutcomeUpdated, Payment: p}, nil
}

// syncOrder writes the derived status unless the order already carries it or
// has been delivered. A repeated payment status leaves the order alone so
// fulfilment and manual cancellation stick. The exception is an order whose
// payment mirror lags the payment, left behind when a previous call stopped
// between the two writes.
func (e *Engine) syncOrder(ctx context.Context, orders OrderRepository, o orderdomain.Order, r Result) (orderdomain.Order, bool, bool, error) {
	ps := r.Payment.Status
	if o.Status == orderdomain.StatusDelivered {
		e.log.Warn("delivered order ignores payment status change",
			"order_id", o.ID,
			"payment_status", ps,
		)
		return o, false, true, nil
	}
	want := domain.DeriveOrderStatus(ps)
	mirror := orderdomain.PaymentStatus(ps)
	if o.PaymentStatus == mirror && (r.Outcome == OutcomeUnchanged || o.Status == want) {
		return o, false, false, nil
	}
	updated, err := orders.UpdateStatus(ctx, o.ID, want, mirror)
	if err != nil {
		return orderdomain.Order{}, false, false, storeErr("update order", err)
	}
	return updated, true, false, nil
}

func (e *Engine) check(n *domain.Notification) error {
	n.GatewayPaymentID = strings.TrimSpace(n.GatewayPaymentID)
	n.ExternalReference = strings.TrimSpace(n.ExternalReference)
	n.Currency = strings.ToUpper(strings.TrimSpace(n.Currency))
	if n.Currency == "" {
		n.Currency = e.opts.DefaultCurrency
	}
	if err := e.validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return &ValidationError{Field: "notification", Reason: err.Error()}
	}
	if n.TransactionAmount.IsNegative() {
		return &ValidationError{Field: "TransactionAmount", Reason: "negative"}
	}
	return nil
}

// OrderRef selects an order by id or by external reference.
type OrderRef struct {
	ID                string
	ExternalReference string
}

// QueryOrder reads straight from the store, so it reflects every
// notification that has already returned.
func (e *Engine) QueryOrder(ctx context.Context, ref OrderRef) (orderdomain.Order, error) {
	if ref.ID == "" && ref.ExternalReference == "" {
		return orderdomain.Order{}, &ValidationError{Field: "order", Reason: "id or external reference required"}
	}
	var o orderdomain.Order
	err := e.within(ctx, "query order", func(ctx context.Context, s Scope) error {
		var err error
		if ref.ID != "" {
			o, err = s.Orders().FindByID(ctx, ref.ID)
		} else {
			o, err = s.Orders().FindByExternalReference(ctx, ref.ExternalReference)
		}
		if errors.Is(err, orderdomain.ErrNotFound) {
			return orderdomain.ErrNotFound
		}
		if err != nil {
			return storeErr("query order", err)
		}
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}
	return o, nil
}

// TransitionOrder applies a fulfilment step (shipping, delivery or manual
// cancellation). It shares the per-order scope with notifications.
func (e *Engine) TransitionOrder(ctx context.Context, orderID string, to orderdomain.OrderStatus) (orderdomain.Order, error) {
	if !to.Valid() {
		return orderdomain.Order{}, &ValidationError{Field: "status", Reason: "unknown order status"}
	}
	var (
		out  orderdomain.Order
		from orderdomain.OrderStatus
	)
	err := e.within(ctx, "transition order", func(ctx context.Context, s Scope) error {
		if err := s.Lock(ctx, "order:"+orderID); err != nil {
			return storeErr("lock order", err)
		}
		o, err := s.Orders().FindByID(ctx, orderID)
		if errors.Is(err, orderdomain.ErrNotFound) {
			return orderdomain.ErrNotFound
		}
		if err != nil {
			return storeErr("find order", err)
		}
		from = o.Status
		if o.Status == to {
			out = o
			return nil
		}
		if !o.Status.CanTransition(to) {
			return ErrInvalidTransition
		}
		out, err = s.Orders().UpdateStatus(ctx, o.ID, to, "")
		if err != nil {
			return storeErr("update order", err)
		}
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}
	if from != to {
		e.log.Info("order status transitioned", "order_id", orderID, "from", from, "to", to)
	}
	return out, nil
}
