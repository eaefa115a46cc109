package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/order/application"
	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log            *slog.Logger
	service        *application.Service
	verifier       *auth.Verifier
	internalSecret string
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, verifier *auth.Verifier, internalSecret string, m *metrics.Metrics) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		verifier:       verifier,
		internalSecret: internalSecret,
		metrics:        m,
		tracer:         otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.verifier.Middleware)
			r.Post("/", h.createOrder)
			r.Get("/my-orders", h.myOrders)
			r.With(auth.RequireRole(auth.RoleAdmin)).Get("/{id}", h.getOrder)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.InternalSecret(h.internalSecret))
			r.Patch("/{id}/confirm", h.confirmOrder)
			r.Patch("/{id}/cancel", h.cancelOrder)
		})
	})
	return r
}

type itemReq struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type createOrderReq struct {
	Items []itemReq `json:"items"`
}

type itemResp struct {
	ProductID       int64 `json:"productId"`
	Quantity        int   `json:"quantity"`
	PriceAtPurchase int64 `json:"priceAtPurchase"`
	ItemSubtotal    int64 `json:"itemSubtotal"`
}

type orderResp struct {
	OrderID     string     `json:"orderId"`
	UserEmail   string     `json:"userEmail"`
	Items       []itemResp `json:"items"`
	TotalAmount int64      `json:"totalAmount"`
	Status      string     `json:"status"`
	OrderDate   time.Time  `json:"orderDate"`
	CheckoutURL string     `json:"checkoutUrl,omitempty"`
}

type stockFailureResp struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type transitionResp struct {
	OrderID       string             `json:"orderId"`
	Status        string             `json:"status"`
	Changed       bool               `json:"changed"`
	StockFailures []stockFailureResp `json:"stockFailures"`
}

func toOrderResp(o domain.Order, checkoutURL string) orderResp {
	items := make([]itemResp, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemResp{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
			ItemSubtotal:    it.Subtotal,
		}
	}
	return orderResp{
		OrderID:     o.ID,
		UserEmail:   o.UserEmail,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		OrderDate:   o.OrderDate,
		CheckoutURL: checkoutURL,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	p, _ := auth.FromContext(ctx)

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	items := make([]application.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = application.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	res, err := h.service.PlaceOrder(ctx, items, p.Email, p.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResp(res.Order, res.CheckoutURL))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	orders, err := h.service.OrdersByUser(r.Context(), p.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]orderResp, len(orders))
	for i, o := range orders {
		out[i] = toOrderResp(o, "")
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.OrderByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, ""))
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmOrder")
	defer span.End()

	res, err := h.service.ConfirmOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	failures := make([]stockFailureResp, len(res.StockFailures))
	for i, f := range res.StockFailures {
		failures[i] = stockFailureResp(f)
	}
	writeJSON(w, http.StatusOK, transitionResp{
		OrderID:       res.Order.ID,
		Status:        string(res.Order.Status),
		Changed:       res.Changed,
		StockFailures: failures,
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	res, err := h.service.CancelOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResp{
		OrderID:       res.Order.ID,
		Status:        string(res.Order.Status),
		Changed:       res.Changed,
		StockFailures: []stockFailureResp{},
	})
}

type errorBody struct {
	Error   string `json:"error"`
	OrderID string `json:"orderId,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var payErr *application.PaymentSessionError
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	switch {
	case errors.As(err, &payErr):
		status = http.StatusServiceUnavailable
		body.OrderID = payErr.OrderID
	case errors.Is(err, application.ErrInvalidRequest), errors.Is(err, application.ErrInsufficientStock):
		status = http.StatusBadRequest
	case errors.Is(err, application.ErrProductNotFound), errors.Is(err, application.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, application.ErrTerminalState):
		status = http.StatusConflict
	case errors.Is(err, application.ErrDownstreamUnavailable):
		status = http.StatusServiceUnavailable
	default:
		body.Error = "internal error"
	}

	if status >= 500 {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.log.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
