package http

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/internal/payment/infrastructure/memory"
	"github.com/dmehra2102/checkout-saga/internal/payment/infrastructure/orderclient"
	stripeadapter "github.com/dmehra2102/checkout-saga/internal/payment/infrastructure/stripe"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/auth/authtest"
	"github.com/dmehra2102/checkout-saga/pkg/logging"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

var jwtSecret = base64.StdEncoding.EncodeToString([]byte("payment-test-secret-payment-test-secret-01"))

const (
	whsec          = "whsec_handler_test"
	internalSecret = "internal-test-secret"
)

type stubProvider struct{ err error }

func (s stubProvider) CreateSession(_ context.Context, req application.CheckoutRequest) (application.CheckoutSession, error) {
	if s.err != nil {
		return application.CheckoutSession{}, s.err
	}
	return application.CheckoutSession{ID: "cs_" + req.OrderID, URL: "https://checkout.stripe.com/c/pay/cs_" + req.OrderID}, nil
}

// orderStub records internal transitions the way the order service exposes them.
type orderStub struct {
	mu    sync.Mutex
	calls []string
}

func (o *orderStub) server(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.With(auth.InternalSecret(internalSecret)).Patch("/api/orders/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.calls = append(o.calls, chi.URLParam(r, "action")+":"+chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type env struct {
	srv    *httptest.Server
	repo   *memory.Repository
	orders *orderStub
}

func newEnv(t *testing.T, provider stubProvider) *env {
	t.Helper()
	orders := &orderStub{}
	orderSrv := orders.server(t)

	repo := memory.NewRepository()
	notifier := orderclient.NewClient(orderSrv.URL+"/api", internalSecret, orderSrv.Client(), time.Second, nil)
	svc := application.NewService(logging.Discard(), repo, provider, stripeadapter.NewVerifier(whsec), notifier, nil, workerpool.New(4), nil)

	verifier, err := auth.NewVerifier(jwtSecret)
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(logging.Discard(), svc, verifier, metrics.New("test")).Routes())
	t.Cleanup(srv.Close)
	return &env{srv: srv, repo: repo, orders: orders}
}

func (e *env) post(t *testing.T, path, body string, headers map[string]string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func bearer(t *testing.T) map[string]string {
	t.Helper()
	tok, err := authtest.IssueToken(jwtSecret, "ann@example.com", time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func signed(body string) map[string]string {
	p := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(body), Secret: whsec, Timestamp: time.Now()})
	return map[string]string{SignatureHeader: p.Header}
}

const sessionBody = `{"orderId":"o-1","amount":1000,"customerEmail":"ann@example.com","productName":"Order #o-1"}`

func completedEvent(orderID string) string {
	return `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{` +
		`"id":"cs_o-1","object":"checkout.session","payment_intent":"pi_1","metadata":{"orderId":"` + orderID + `"}}}}`
}

func TestCreateSession(t *testing.T) {
	e := newEnv(t, stubProvider{})

	status, body := e.post(t, "/api/payments/create-session", sessionBody, bearer(t))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_o-1", body)

	p, err := e.repo.GetBySessionID(context.Background(), "cs_o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
}

func TestCreateSessionErrors(t *testing.T) {
	e := newEnv(t, stubProvider{})

	status, _ := e.post(t, "/api/payments/create-session", sessionBody, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.post(t, "/api/payments/create-session", `{"orderId":"o-1","amount":0,"customerEmail":"a@x"}`, bearer(t))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.post(t, "/api/payments/create-session", `not json`, bearer(t))
	assert.Equal(t, http.StatusBadRequest, status)

	down := newEnv(t, stubProvider{err: errors.New("stripe down")})
	status, _ = down.post(t, "/api/payments/create-session", sessionBody, bearer(t))
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestWebhookConfirmsOrder(t *testing.T) {
	e := newEnv(t, stubProvider{})
	status, _ := e.post(t, "/api/payments/create-session", sessionBody, bearer(t))
	require.Equal(t, http.StatusOK, status)

	ev := completedEvent("o-1")
	status, body := e.post(t, "/api/payments/webhook", ev, signed(ev))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"processed"`)
	assert.Equal(t, []string{"confirm:o-1"}, e.orders.calls)

	p, err := e.repo.GetBySessionID(context.Background(), "cs_o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, p.Status)
}

func TestWebhookBadSignature(t *testing.T) {
	e := newEnv(t, stubProvider{})
	_, _ = e.post(t, "/api/payments/create-session", sessionBody, bearer(t))

	ev := completedEvent("o-1")
	status, _ := e.post(t, "/api/payments/webhook", ev, map[string]string{SignatureHeader: "t=1,v1=00"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.post(t, "/api/payments/webhook", ev, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Empty(t, e.orders.calls)
	p, err := e.repo.GetBySessionID(context.Background(), "cs_o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
}

func TestWebhookBusinessFailuresAreAcknowledged(t *testing.T) {
	e := newEnv(t, stubProvider{})

	ev := completedEvent("")
	status, body := e.post(t, "/api/payments/webhook", ev, signed(ev))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"dropped"`)

	ignored := `{"id":"evt_9","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`
	status, body = e.post(t, "/api/payments/webhook", ignored, signed(ignored))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"ignored"`)
	assert.Empty(t, e.orders.calls)
}
