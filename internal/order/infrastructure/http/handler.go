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

	"github.com/dmehra2102/storefront-reconciler/internal/order/application"
	"github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	payment "github.com/dmehra2102/storefront-reconciler/internal/payment/application"
)

const userHeader = "X-User-ID"

// Transitioner applies fulfilment steps under the same per-order scope the
// payment engine uses.
type Transitioner interface {
	TransitionOrder(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	fulfil  Transitioner
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, fulfil Transitioner) *Handler {
	return &Handler{
		log:     log,
		service: service,
		fulfil:  fulfil,
		tracer:  otel.Tracer("order-http"),
	}
}

// Routes is mounted under /orders.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Patch("/{id}/status", h.updateStatus)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req application.Checkout
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get(userHeader)
	}

	o, err := h.service.PlaceOrder(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	user := r.Header.Get(userHeader)
	if ref := r.URL.Query().Get("external_reference"); ref != "" {
		o, err := h.service.GetByExternalReference(ctx, ref, user)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	orders, err := h.service.ListForUser(ctx, user)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, chi.URLParam(r, "id"), r.Header.Get(userHeader))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TransitionOrder")
	defer span.End()

	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err)
		return
	}
	o, err := h.fulfil.TransitionOrder(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidCheckout), errors.Is(err, payment.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, payment.ErrStoreUnavailable):
		h.log.Error("order store failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Error processing order", err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, application.ErrForbidden):
		writeError(w, http.StatusForbidden, "Unauthorized", nil)
	case errors.Is(err, payment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid status transition", err)
	default:
		h.log.Error("order request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Error processing order", err)
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
