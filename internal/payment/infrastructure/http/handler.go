package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

type PaymentFinder interface {
	FindByGatewayID(ctx context.Context, gatewayID string) (domain.Payment, error)
}

type Handler struct {
	log      *slog.Logger
	engine   *application.Engine
	syncer   *application.Syncer
	payments PaymentFinder
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, engine *application.Engine, syncer *application.Syncer, payments PaymentFinder) *Handler {
	return &Handler{
		log:      log,
		engine:   engine,
		syncer:   syncer,
		payments: payments,
		tracer:   otel.Tracer("payment-http"),
	}
}

// Routes is mounted under /payments.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook", h.webhook)
	r.Get("/webhook", h.verify)
	r.Get("/{id}", h.getPayment)
	r.Post("/{id}/sync", h.sync)
	return r
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err)
		return
	}
	span.SetAttributes(
		attribute.String("notification.type", env.Type),
		attribute.String("gateway.payment_id", string(env.Data.ID)),
	)

	res, err := h.engine.HandleEnvelope(ctx, env)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"received":     true,
		"outcome":      res.Outcome,
		"orderUpdated": res.OrderUpdated,
	})
}

func (h *Handler) verify(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook endpoint"})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.payments.FindByGatewayID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SyncPayment")
	defer span.End()

	res, err := h.syncer.Sync(ctx, chi.URLParam(r, "id"))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid notification", err)
	case errors.Is(err, application.ErrStoreUnavailable):
		// a store that lost a row mid-write is a server fault, not a lookup miss
		h.log.Error("payment store failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Webhook processing failed", err)
	case errors.Is(err, application.ErrOrderNotFound), errors.Is(err, orderdomain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, application.ErrGatewayPaymentMissing):
		writeError(w, http.StatusNotFound, "Payment not found", nil)
	case errors.Is(err, application.ErrGatewayUnavailable):
		h.log.Warn("gateway lookup failed", "err", err)
		writeError(w, http.StatusBadGateway, "gateway unavailable", err)
	default:
		h.log.Error("payment request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Webhook processing failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["message"] = err.Error()
	}
	writeJSON(w, status, body)
}
