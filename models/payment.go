package models

import "time"

type OrderStatus string

const (
	OrderCreated  OrderStatus = "created"
	OrderVerified OrderStatus = "verified"
	OrderCaptured OrderStatus = "captured"
	OrderFailed   OrderStatus = "failed"
	OrderExpired  OrderStatus = "expired"
)

// Settled reports whether the gateway confirmed the payment.
func (s OrderStatus) Settled() bool {
	return s == OrderVerified || s == OrderCaptured
}

// PaymentOrder is keyed by the gateway order id.
type PaymentOrder struct {
	ID        string      `json:"id"`
	TeamID    string      `json:"teamId"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
	Receipt   string      `json:"receipt"`
	PaymentID *string     `json:"paymentId,omitempty"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type RefundStatus string

const (
	RefundQueued    RefundStatus = "queued"
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

type Refund struct {
	ID              string       `json:"id"`
	TeamID          string       `json:"teamId"`
	PaymentID       string       `json:"paymentId"`
	Amount          int64        `json:"amount"`
	Reason          string       `json:"reason,omitempty"`
	Status          RefundStatus `json:"status"`
	GatewayRefundID *string      `json:"gatewayRefundId,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
