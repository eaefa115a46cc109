package application

import (
	"context"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
)

type PaymentRepository interface {
	Save(ctx context.Context, p domain.Payment) error
	GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error)
	// LatestByOrderID returns the most recently created payment for the order.
	LatestByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	// Update stores the payment and the outbox entry in one transaction.
	Update(ctx context.Context, p domain.Payment, entry outbox.Entry) error
}

type CheckoutRequest struct {
	OrderID       string
	Amount        int64
	CustomerEmail string
	ProductName   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider opens hosted checkout pages. The order id must travel as
// metadata on both the session and its payment intent.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// WebhookEvent is a verified provider notification reduced to the fields the
// saga needs. Fields the event type does not carry stay empty.
type WebhookEvent struct {
	ID              string
	Type            string
	OrderID         string
	SessionID       string
	PaymentIntentID string
	FailureReason   string
}

type Verifier interface {
	// Verify checks the signature before anything in payload is trusted.
	Verify(payload []byte, signature string) (WebhookEvent, error)
}

// OrderNotifier drives the order service over the internal channel.
type OrderNotifier interface {
	Confirm(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) error
}

type Deduplicator interface {
	Key(scope, id string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
