package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SignatureHeader carries Stripe's t=...,v1=... webhook signature.
const SignatureHeader = "Stripe-Signature"

// Stripe caps event payloads well below this.
const maxWebhookBody = 256 << 10

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	verifier *auth.Verifier
	metrics  *metrics.Metrics
}

func NewHandler(log *slog.Logger, service *application.Service, verifier *auth.Verifier, m *metrics.Metrics) *Handler {
	return &Handler{log: log, service: service, verifier: verifier, metrics: m}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api/payments", func(r chi.Router) {
		r.With(h.verifier.Middleware).Post("/create-session", h.createSession)
		r.Post("/webhook", h.webhook)
	})
	return r
}

type createSessionReq struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	CustomerEmail string `json:"customerEmail"`
	ProductName   string `json:"productName"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	url, err := h.service.CreateSession(r.Context(), application.SessionRequest(req))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, url)
	case errors.Is(err, application.ErrInvalidRequest):
		h.log.InfoContext(r.Context(), "create session rejected", "order_id", req.OrderID, "err", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, application.ErrProviderUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "payment provider unavailable"})
	default:
		h.log.ErrorContext(r.Context(), "create session failed", "order_id", req.OrderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid signature"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": "true", "outcome": string(outcome)})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
