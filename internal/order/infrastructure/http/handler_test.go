package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/order/application"
	"github.com/dmehra2102/checkout-saga/internal/order/infrastructure/memory"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/auth/authtest"
	"github.com/dmehra2102/checkout-saga/pkg/logging"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtSecret = base64.StdEncoding.EncodeToString([]byte("handler-test-secret-handler-test-secret-0123"))

const internalSecret = "internal-test-secret"

type stubInventory struct {
	mu       sync.Mutex
	products map[int64]application.Product
	reduced  map[int64]int
	down     bool
}

func (s *stubInventory) GetProduct(_ context.Context, id int64, _ string) (application.Product, error) {
	if s.down {
		return application.Product{}, application.ErrDownstreamUnavailable
	}
	p, ok := s.products[id]
	if !ok {
		return application.Product{}, application.ErrProductNotFound
	}
	return p, nil
}

func (s *stubInventory) ReduceStock(_ context.Context, id int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reduced[id] += qty
	return nil
}

type stubPayment struct{ err error }

func (s stubPayment) CreateSession(_ context.Context, req application.PaymentRequest, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://pay.example/" + req.OrderID, nil
}

type env struct {
	srv  *httptest.Server
	inv  *stubInventory
	repo *memory.Repository
}

func newEnv(t *testing.T, pay stubPayment) *env {
	t.Helper()
	inv := &stubInventory{
		products: map[int64]application.Product{1: {ID: 1, Name: "Mug", Price: 500, StockQuantity: 10}},
		reduced:  map[int64]int{},
	}
	repo := memory.NewRepository()
	svc := application.NewService(logging.Discard(), repo, inv, pay, workerpool.New(2), nil)
	verifier, err := auth.NewVerifier(jwtSecret)
	require.NoError(t, err)

	h := NewHandler(logging.Discard(), svc, verifier, internalSecret, metrics.New("test"))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &env{srv: srv, inv: inv, repo: repo}
}

func token(t *testing.T, email string, roles ...string) string {
	t.Helper()
	tok, err := authtest.IssueToken(jwtSecret, email, time.Hour, roles...)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func bearer(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

func internal(secret string) map[string]string { return map[string]string{auth.InternalSecretHeader: secret} }

func TestCreateOrderFlow(t *testing.T) {
	e := newEnv(t, stubPayment{})
	tok := token(t, "ann@example.com")

	resp, body := e.do(t, http.MethodPost, "/api/orders", `{"items":[{"productId":1,"quantity":2}]}`, bearer(tok))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(1000), body["totalAmount"])
	assert.Equal(t, "ann@example.com", body["userEmail"])
	orderID := body["orderId"].(string)
	assert.Equal(t, "https://pay.example/"+orderID, body["checkoutUrl"])

	resp, body = e.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "", internal(internalSecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CONFIRMED", body["status"])
	assert.Equal(t, true, body["changed"])
	assert.Equal(t, 2, e.inv.reduced[1])

	resp, body = e.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "", internal(internalSecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["changed"])
	assert.Equal(t, 2, e.inv.reduced[1], "second confirm does not touch stock")

	resp, _ = e.do(t, http.MethodPatch, "/api/orders/"+orderID+"/cancel", "", internal(internalSecret))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateOrderErrors(t *testing.T) {
	e := newEnv(t, stubPayment{})
	tok := token(t, "ann@example.com")

	cases := []struct {
		name    string
		body    string
		headers map[string]string
		want    int
	}{
		{"no token", `{"items":[{"productId":1,"quantity":1}]}`, nil, http.StatusUnauthorized},
		{"bad json", `{`, bearer(tok), http.StatusBadRequest},
		{"empty items", `{"items":[]}`, bearer(tok), http.StatusBadRequest},
		{"insufficient stock", `{"items":[{"productId":1,"quantity":11}]}`, bearer(tok), http.StatusBadRequest},
		{"unknown product", `{"items":[{"productId":99,"quantity":1}]}`, bearer(tok), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := e.do(t, http.MethodPost, "/api/orders", tc.body, tc.headers)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, e.repo.Len())
}

func TestCreateOrderDownstream(t *testing.T) {
	e := newEnv(t, stubPayment{})
	e.inv.down = true
	resp, _ := e.do(t, http.MethodPost, "/api/orders", `{"items":[{"productId":1,"quantity":1}]}`, bearer(token(t, "ann@example.com")))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCreateOrderPaymentFailureReturnsOrderID(t *testing.T) {
	e := newEnv(t, stubPayment{err: errors.New("boom")})
	resp, body := e.do(t, http.MethodPost, "/api/orders", `{"items":[{"productId":1,"quantity":1}]}`, bearer(token(t, "ann@example.com")))
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, body["orderId"])
	assert.Equal(t, 1, e.repo.Len())
}

func TestInternalEndpointsRequireSecret(t *testing.T) {
	e := newEnv(t, stubPayment{})
	_, body := e.do(t, http.MethodPost, "/api/orders", `{"items":[{"productId":1,"quantity":1}]}`, bearer(token(t, "ann@example.com")))
	orderID := body["orderId"].(string)

	for _, secret := range []string{"", "wrong"} {
		resp, _ := e.do(t, http.MethodPatch, "/api/orders/"+orderID+"/confirm", "", internal(secret))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	o, err := e.repo.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", string(o.Status))
	assert.Empty(t, e.inv.reduced)

	resp, _ := e.do(t, http.MethodPatch, "/api/orders/nope/cancel", "", internal(internalSecret))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = e.do(t, http.MethodPatch, "/api/orders/"+orderID+"/cancel", "", internal(internalSecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", body["status"])
}

func TestMyOrdersAndAdminLookup(t *testing.T) {
	e := newEnv(t, stubPayment{})
	ann := token(t, "ann@example.com")
	_, body := e.do(t, http.MethodPost, "/api/orders", `{"items":[{"productId":1,"quantity":1}]}`, bearer(ann))
	orderID := body["orderId"].(string)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/orders/my-orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ann)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	_ = resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, orderID, list[0]["orderId"])

	resp, _ = e.do(t, http.MethodGet, "/api/orders/"+orderID, "", bearer(ann))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/orders/"+orderID, "", bearer(token(t, "root@example.com", auth.RoleAdmin)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ann@example.com", body["userEmail"])
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, stubPayment{})
	resp, body := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, err := e.srv.Client().Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
