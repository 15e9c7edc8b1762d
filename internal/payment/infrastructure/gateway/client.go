package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

// Client reads payments from the provider's REST API:
// GET {base}/v1/payments/{id} with a bearer token.
type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func NewClient(log *slog.Logger, baseURL, token string, rps float64) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Client{
		log:     log,
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer("payment-gateway"),
	}
}

func (c *Client) PaymentStatus(ctx context.Context, gatewayID string) (domain.NotificationData, error) {
	ctx, span := c.tracer.Start(ctx, "GatewayPaymentStatus", trace.WithAttributes(attribute.String("gateway.payment_id", gatewayID)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.NotificationData{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(gatewayID), nil)
	if err != nil {
		return domain.NotificationData{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NotificationData{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotificationData{}, application.ErrGatewayPaymentMissing
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("gateway lookup failed", "gateway_id", gatewayID, "status", resp.StatusCode)
		return domain.NotificationData{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data domain.NotificationData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.NotificationData{}, fmt.Errorf("decode gateway payment: %w", err)
	}
	return data, nil
}
