package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("order not found")

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is expected from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition is the fulfilment graph: pending -> processing -> shipped ->
// delivered, with cancelled reachable from pending or processing.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	}
	return false
}

// PaymentStatus mirrors the latest normalized payment status on the order.
// The values are owned by the payment context.
type PaymentStatus string

const PaymentPending PaymentStatus = "pending"

type Order struct {
	ID                string          `json:"id"`
	ExternalReference string          `json:"externalReference"`
	UserID            string          `json:"userId,omitempty"`
	Items             []OrderItem     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	Shipping          decimal.Decimal `json:"shipping"`
	Total             decimal.Decimal `json:"total"`
	Customer          Customer        `json:"customer"`
	Address           Address         `json:"shippingAddress"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OrderItem is a snapshot of the catalog entry taken at checkout.
type OrderItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Draft carries everything a store needs to persist a new order. Totals are
// computed by NewDraft and copied verbatim into the stored order.
type Draft struct {
	UserID   string
	Items    []OrderItem
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Customer Customer
	Address  Address
}

func NewDraft(userID string, items []OrderItem, discount, shipping decimal.Decimal, customer Customer, address Address) Draft {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return Draft{
		UserID:   userID,
		Items:    items,
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(shipping),
		Customer: customer,
		Address:  address,
	}
}

// NewOrder materialises a draft in pending/pending with fresh identifiers.
func NewOrder(d Draft, now time.Time) Order {
	items := make([]OrderItem, len(d.Items))
	for i, item := range d.Items {
		item.ID = uuid.NewString()
		items[i] = item
	}
	return Order{
		ID:                uuid.NewString(),
		ExternalReference: NewExternalReference(),
		UserID:            d.UserID,
		Items:             items,
		Subtotal:          d.Subtotal,
		Discount:          d.Discount,
		Shipping:          d.Shipping,
		Total:             d.Total,
		Customer:          d.Customer,
		Address:           d.Address,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewExternalReference is the value handed to the gateway; it never changes.
func NewExternalReference() string {
	return "order_" + uuid.NewString()
}
