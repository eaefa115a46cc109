package domain

import "time"

const (
	EventPaymentSucceeded = "PaymentSucceeded"
	EventPaymentFailed    = "PaymentFailed"
)

type PaymentSucceeded struct {
	PaymentID       string    `json:"paymentId"`
	OrderID         string    `json:"orderId"`
	SessionID       string    `json:"sessionId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	Amount          int64     `json:"amount"`
	At              time.Time `json:"at"`
}

type PaymentFailed struct {
	PaymentID       string    `json:"paymentId"`
	OrderID         string    `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	At              time.Time `json:"at"`
}
