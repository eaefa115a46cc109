package stripe

import (
	"encoding/json"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Verifier checks the Stripe-Signature header (t=...,v1=... HMAC-SHA256)
// with the endpoint secret and the library's default timestamp tolerance.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

var _ application.Verifier = (*Verifier)(nil)

func (v *Verifier) Verify(payload []byte, signature string) (application.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return application.WebhookEvent{}, err
	}

	out := application.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	// An object that does not decode leaves the fields empty and the event
	// is dropped for lack of an order id.
	switch event.Type {
	case stripego.EventTypeCheckoutSessionCompleted:
		var cs stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return out, nil
		}
		out.SessionID = cs.ID
		out.OrderID = cs.Metadata[metadataOrderID]
		if cs.PaymentIntent != nil {
			out.PaymentIntentID = cs.PaymentIntent.ID
		}
	case stripego.EventTypePaymentIntentPaymentFailed:
		var pi stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return out, nil
		}
		out.PaymentIntentID = pi.ID
		out.OrderID = pi.Metadata[metadataOrderID]
		if pi.LastPaymentError != nil {
			out.FailureReason = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}
