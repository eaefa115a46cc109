package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const whsec = "whsec_test_secret"

func TestCheckoutCreateSession(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	c := NewCheckout(CheckoutConfig{
		SecretKey:  "sk_test_123",
		SuccessURL: "https://shop.example/ok",
		CancelURL:  "https://shop.example/cancel",
		Timeout:    time.Second,
		BackendURL: srv.URL,
	}, srv.Client(), nil)

	s, err := c.CreateSession(context.Background(), application.CheckoutRequest{
		OrderID: "o-1", Amount: 1000, CustomerEmail: "ann@example.com", ProductName: "Order #o-1",
	})
	require.NoError(t, err)
	assert.Equal(t, application.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, s)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "ann@example.com", form["customer_email"])
	assert.Equal(t, "o-1", form["metadata[orderId]"])
	assert.Equal(t, "o-1", form["payment_intent_data[metadata][orderId]"])
	assert.Equal(t, "1000", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "usd", form["line_items[0][price_data][currency]"])
	assert.Equal(t, "Order #o-1", form["line_items[0][price_data][product_data][name]"])
}

func TestCheckoutCreateSessionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad amount"}}`))
	}))
	defer srv.Close()

	c := NewCheckout(CheckoutConfig{SecretKey: "sk_test", BackendURL: srv.URL}, srv.Client(), nil)
	_, err := c.CreateSession(context.Background(), application.CheckoutRequest{OrderID: "o-1", Amount: 1})
	assert.Error(t, err)
}

func sign(t *testing.T, body string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    whsec,
		Timestamp: time.Now(),
	})
	return signed.Header
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_intent": "pi_123",
    "metadata": {"orderId": "o-1"}
  }}
}`

const failedEvent = `{
  "id": "evt_2",
  "object": "event",
  "type": "payment_intent.payment_failed",
  "data": {"object": {
    "id": "pi_456",
    "object": "payment_intent",
    "metadata": {"orderId": "o-2"},
    "last_payment_error": {"message": "Your card was declined."}
  }}
}`

func TestVerifierDecodesEvents(t *testing.T) {
	v := NewVerifier(whsec)

	ev, err := v.Verify([]byte(completedEvent), sign(t, completedEvent))
	require.NoError(t, err)
	assert.Equal(t, application.WebhookEvent{
		ID:              "evt_1",
		Type:            application.EventCheckoutCompleted,
		OrderID:         "o-1",
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_123",
	}, ev)

	ev, err = v.Verify([]byte(failedEvent), sign(t, failedEvent))
	require.NoError(t, err)
	assert.Equal(t, application.EventPaymentFailed, ev.Type)
	assert.Equal(t, "o-2", ev.OrderID)
	assert.Equal(t, "pi_456", ev.PaymentIntentID)
	assert.Equal(t, "Your card was declined.", ev.FailureReason)
}

func TestVerifierRejectsBadSignature(t *testing.T) {
	v := NewVerifier(whsec)

	_, err := v.Verify([]byte(completedEvent), "t=1,v1=deadbeef")
	assert.Error(t, err)

	_, err = v.Verify([]byte(completedEvent), "")
	assert.Error(t, err)

	tampered := sign(t, completedEvent)
	_, err = v.Verify([]byte(failedEvent), tampered)
	assert.Error(t, err)
}

func TestVerifierUnknownType(t *testing.T) {
	body := `{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`
	ev, err := NewVerifier(whsec).Verify([]byte(body), sign(t, body))
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", ev.Type)
	assert.Empty(t, ev.OrderID)
}
