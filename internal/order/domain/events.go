package domain

import "time"

const EventOrderStatusChanged = "OrderStatusChanged"

type OrderStatusChanged struct {
	OrderID           string        `json:"orderId"`
	ExternalReference string        `json:"externalReference"`
	Status            OrderStatus   `json:"status"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	ChangedAt         time.Time     `json:"changedAt"`
}
