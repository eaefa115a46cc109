package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const aggregateType = "payment"

type Service struct {
	log      *slog.Logger
	repo     PaymentRepository
	provider CheckoutProvider
	verifier Verifier
	notifier OrderNotifier
	dedup    Deduplicator
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	now   func() time.Time
	newID func() string
}

// NewService wires the payment side of the saga. Store calls run on pool.
// dedup may be nil, in which case duplicate webhook deliveries are processed
// again.
func NewService(log *slog.Logger, repo PaymentRepository, provider CheckoutProvider, verifier Verifier, notifier OrderNotifier, dedup Deduplicator, pool *workerpool.Pool, m *metrics.Metrics) *Service {
	return &Service{
		log:      log,
		repo:     newPooledRepository(repo, pool),
		provider: provider,
		verifier: verifier,
		notifier: notifier,
		dedup:    dedup,
		metrics:  m,
		tracer:   otel.Tracer("payment-service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type SessionRequest struct {
	OrderID       string
	Amount        int64
	CustomerEmail string
	ProductName   string
}

// CreateSession opens a checkout session for the order and records a PENDING
// payment keyed by the session id. It returns the checkout URL.
func (s *Service) CreateSession(ctx context.Context, req SessionRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "CreateSession", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer span.End()

	switch {
	case req.OrderID == "":
		return "", fmt.Errorf("%w: missing orderId", ErrInvalidRequest)
	case req.Amount <= 0:
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case req.CustomerEmail == "":
		return "", fmt.Errorf("%w: missing customerEmail", ErrInvalidRequest)
	}
	if req.ProductName == "" {
		req.ProductName = "Order #" + req.OrderID
	}

	session, err := s.provider.CreateSession(ctx, CheckoutRequest(req))
	if err != nil {
		s.metrics.SagaStep("create_session", metrics.OutcomeError)
		s.log.ErrorContext(ctx, "checkout session failed", "order_id", req.OrderID, "err", err)
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	p, err := domain.NewPayment(s.newID(), req.OrderID, session.ID, req.CustomerEmail, req.Amount, s.now())
	if err != nil {
		return "", err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		s.metrics.SagaStep("create_session", metrics.OutcomeError)
		return "", fmt.Errorf("store payment for session %s: %w", session.ID, err)
	}

	s.metrics.SagaStep("create_session", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "checkout session created", "order_id", req.OrderID, "session_id", session.ID, "amount", req.Amount)
	return session.URL, nil
}
