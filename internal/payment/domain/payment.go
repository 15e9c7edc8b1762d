package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every local payment status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusRefunded, StatusCancelled}

type Payment struct {
	ID                string          `json:"id"`
	GatewayID         string          `json:"gatewayId"`
	OrderID           string          `json:"orderId"`
	Status            Status          `json:"status"`
	StatusDetail      string          `json:"statusDetail,omitempty"`
	PaymentMethodID   string          `json:"paymentMethodId,omitempty"`
	PaymentTypeID     string          `json:"paymentTypeId,omitempty"`
	TransactionAmount decimal.Decimal `json:"transactionAmount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type Draft struct {
	GatewayID         string
	OrderID           string
	Status            Status
	StatusDetail      string
	PaymentMethodID   string
	PaymentTypeID     string
	TransactionAmount decimal.Decimal
	Currency          string
	Description       string
}
