package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/dmehra2102/checkout-saga/pkg/tracing"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const aggregateType = "order"

// maxFanOut caps concurrent inventory lookups for a single order.
const maxFanOut = 8

type ItemRequest struct {
	ProductID int64
	Quantity  int
}

type OrderResult struct {
	Order       domain.Order
	CheckoutURL string
}

type StockFailure struct {
	ProductID int64
	Quantity  int
	Reason    string
}

type ConfirmResult struct {
	Order         domain.Order
	Changed       bool
	StockFailures []StockFailure
}

type CancelResult struct {
	Order   domain.Order
	Changed bool
}

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	inv     InventoryClient
	pay     PaymentClient
	metrics *metrics.Metrics
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
}

// NewService wires the orchestrator. Store calls go through pool when it is
// non-nil.
func NewService(log *slog.Logger, repo OrderRepository, inv InventoryClient, pay PaymentClient, pool *workerpool.Pool, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		repo:    newPooledRepository(repo, pool),
		inv:     inv,
		pay:     pay,
		metrics: m,
		tracer:  otel.Tracer("order-service"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

type lookup struct {
	product Product
	err     error
}

// PlaceOrder validates stock for every product concurrently, stores the order
// as PENDING at the inventory's current prices and opens a payment session.
// Nothing is stored unless every product passes.
func (s *Service) PlaceOrder(ctx context.Context, items []ItemRequest, userEmail, authToken string) (result OrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder")
	defer func() { s.finish(span, "place_order", err) }()

	if err := validateItems(items, userEmail); err != nil {
		return OrderResult{}, err
	}

	var ids []int64
	requested := make(map[int64]int, len(items))
	for _, it := range items {
		if _, ok := requested[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		// Saturate rather than wrap past MaxInt.
		if it.Quantity > math.MaxInt-requested[it.ProductID] {
			requested[it.ProductID] = math.MaxInt
			continue
		}
		requested[it.ProductID] += it.Quantity
	}
	span.SetAttributes(attribute.Int("order.distinct_products", len(ids)))

	// Lookups never cancel each other so the decision below sees every result.
	results := make([]lookup, len(ids))
	var g errgroup.Group
	g.SetLimit(maxFanOut)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.inv.GetProduct(ctx, id, authToken)
			results[i] = lookup{product: p, err: err}
			return nil
		})
	}
	_ = g.Wait()

	prices := make(map[int64]int64, len(ids))
	for i, id := range ids {
		r := results[i]
		switch {
		case errors.Is(r.err, ErrProductNotFound):
			return OrderResult{}, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
		case r.err != nil:
			return OrderResult{}, fmt.Errorf("product %d: %w: %v", id, ErrDownstreamUnavailable, r.err)
		case r.product.StockQuantity < requested[id]:
			return OrderResult{}, &InsufficientStockError{ProductID: id, Requested: requested[id], Available: r.product.StockQuantity}
		}
		prices[id] = r.product.Price
	}

	lines := make([]domain.OrderItem, len(items))
	for i, it := range items {
		lines[i] = domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, PriceAtPurchase: prices[it.ProductID]}
	}
	o, err := domain.NewOrder(s.newID(), userEmail, lines, s.now())
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return OrderResult{}, fmt.Errorf("store order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int64("order.total", o.TotalAmount))
	s.log.InfoContext(ctx, "order created", "order_id", o.ID, "user", userEmail, "total", o.TotalAmount)

	url, err := s.pay.CreateSession(ctx, PaymentRequest{
		OrderID:       o.ID,
		Amount:        o.TotalAmount,
		CustomerEmail: userEmail,
		ProductName:   "Order #" + o.ID,
	}, authToken)
	if err != nil {
		s.log.ErrorContext(ctx, "payment session failed, order left pending", "order_id", o.ID, "err", err)
		s.metrics.SagaStep("orphaned_order", metrics.OutcomeError)
		return OrderResult{}, &PaymentSessionError{OrderID: o.ID, Err: err}
	}

	return OrderResult{Order: o, CheckoutURL: url}, nil
}

func validateItems(items []ItemRequest, email string) error {
	if email == "" {
		return fmt.Errorf("%w: missing user email", ErrInvalidRequest)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidRequest)
	}
	for _, it := range items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: invalid product id %d", ErrInvalidRequest, it.ProductID)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %d must be positive", ErrInvalidRequest, it.ProductID)
		}
	}
	return nil
}

// ConfirmOrder marks the order CONFIRMED and then decrements stock for each
// line. Confirming an already confirmed order does nothing. Stock failures
// are recorded, never rolled back.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (result ConfirmResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ConfirmOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { s.finish(span, "confirm_order", err) }()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return ConfirmResult{}, err
	}

	changed, err := o.Confirm(s.now())
	if err != nil {
		return ConfirmResult{Order: o}, err
	}
	if !changed {
		s.log.InfoContext(ctx, "order already confirmed", "order_id", o.ID)
		return ConfirmResult{Order: o}, nil
	}

	entry, err := outbox.NewEntry(aggregateType, o.ID, domain.EventOrderConfirmed, domain.NewOrderConfirmed(o), tracing.Traceparent(ctx))
	if err != nil {
		return ConfirmResult{}, err
	}
	if err := s.repo.UpdateStatus(ctx, o, entry); err != nil {
		return ConfirmResult{}, fmt.Errorf("store confirmation: %w", err)
	}
	s.log.InfoContext(ctx, "order confirmed", "order_id", o.ID)

	// The order is confirmed whether or not the caller is still listening.
	failures := s.reduceStock(context.WithoutCancel(ctx), o)
	return ConfirmResult{Order: o, Changed: true, StockFailures: failures}, nil
}

func (s *Service) reduceStock(ctx context.Context, o domain.Order) []StockFailure {
	var (
		mu       sync.Mutex
		failures []StockFailure
		g        errgroup.Group
	)
	for _, it := range o.Items {
		g.Go(func() error {
			err := s.inv.ReduceStock(ctx, it.ProductID, it.Quantity)
			if err == nil {
				s.metrics.SagaStep("reduce_stock", metrics.OutcomeSuccess)
				return nil
			}
			s.metrics.SagaStep("reduce_stock", metrics.OutcomeError)
			s.log.ErrorContext(ctx, "stock reduction failed after confirmation",
				"order_id", o.ID, "product_id", it.ProductID, "quantity", it.Quantity, "err", err)
			mu.Lock()
			failures = append(failures, StockFailure{ProductID: it.ProductID, Quantity: it.Quantity, Reason: err.Error()})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		entry, err := outbox.NewEntry(aggregateType, o.ID, domain.EventStockReductionFailed, domain.StockReductionFailed{
			OrderID:   o.ID,
			ProductID: f.ProductID,
			Quantity:  f.Quantity,
			Reason:    f.Reason,
			At:        s.now().UTC(),
		}, tracing.Traceparent(ctx))
		if err == nil {
			err = s.repo.AppendEvent(ctx, entry)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "record stock failure", "order_id", o.ID, "product_id", f.ProductID, "err", err)
		}
	}
	return failures
}

// CancelOrder marks a PENDING order CANCELLED. A confirmed order cannot be
// cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (result CancelResult, err error) {
	ctx, span := s.tracer.Start(ctx, "CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { s.finish(span, "cancel_order", err) }()

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return CancelResult{}, err
	}

	changed, err := o.Cancel(s.now())
	if err != nil {
		return CancelResult{Order: o}, err
	}
	if !changed {
		return CancelResult{Order: o}, nil
	}

	entry, err := outbox.NewEntry(aggregateType, o.ID, domain.EventOrderCancelled, domain.OrderCancelled{
		OrderID: o.ID,
		At:      o.UpdatedAt,
	}, tracing.Traceparent(ctx))
	if err != nil {
		return CancelResult{}, err
	}
	if err := s.repo.UpdateStatus(ctx, o, entry); err != nil {
		return CancelResult{}, fmt.Errorf("store cancellation: %w", err)
	}
	s.log.InfoContext(ctx, "order cancelled", "order_id", o.ID)
	return CancelResult{Order: o, Changed: true}, nil
}

func (s *Service) OrdersByUser(ctx context.Context, email string) ([]domain.Order, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: missing user email", ErrInvalidRequest)
	}
	return s.repo.ListByUser(ctx, email)
}

func (s *Service) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) finish(span trace.Span, step string, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.SagaStep(step, metrics.OutcomeError)
		return
	}
	s.metrics.SagaStep(step, metrics.OutcomeSuccess)
}
