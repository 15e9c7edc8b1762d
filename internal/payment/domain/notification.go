package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// NotificationTypePayment is the only notification type the engine acts on.
const NotificationTypePayment = "payment"

// Envelope is the webhook body as delivered by the gateway.
type Envelope struct {
	Type string           `json:"type"`
	Data NotificationData `json:"data"`
}

// NotificationData holds the fields read from a gateway payment payload.
type NotificationData struct {
	ID                GatewayID        `json:"id"`
	Status            string           `json:"status"`
	StatusDetail      string           `json:"status_detail,omitempty"`
	ExternalReference string           `json:"external_reference"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty"`
	PaymentMethodID   string           `json:"payment_method_id,omitempty"`
	PaymentTypeID     string           `json:"payment_type_id,omitempty"`
	CurrencyID        string           `json:"currency_id,omitempty"`
	Description       string           `json:"description,omitempty"`
}

// Notification returns the payload in engine form.
func (d NotificationData) Notification() Notification {
	n := Notification{
		GatewayPaymentID:  string(d.ID),
		RawStatus:         d.Status,
		RawStatusDetail:   d.StatusDetail,
		ExternalReference: d.ExternalReference,
		PaymentMethodID:   d.PaymentMethodID,
		PaymentTypeID:     d.PaymentTypeID,
		Currency:          d.CurrencyID,
		Description:       d.Description,
	}
	if d.TransactionAmount != nil {
		n.TransactionAmount = *d.TransactionAmount
	}
	return n
}

// Notification is one inbound payment status report, from a webhook or from
// an explicit gateway lookup.
type Notification struct {
	GatewayPaymentID  string `validate:"required"`
	RawStatus         string `validate:"required"`
	RawStatusDetail   string
	ExternalReference string `validate:"required"`
	TransactionAmount decimal.Decimal
	Currency          string `validate:"omitempty,len=3"`
	PaymentMethodID   string
	PaymentTypeID     string
	Description       string
}

// GatewayID accepts both JSON strings and numbers, since gateways differ in
// how they encode payment ids.
type GatewayID string

func (g *GatewayID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GatewayID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*g = GatewayID(n.String())
	return nil
}
