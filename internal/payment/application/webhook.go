package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/dmehra2102/checkout-saga/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDropped   Outcome = "dropped"
	OutcomeFailed    Outcome = "failed"
)

const dedupScope = "stripe"

// HandleWebhook verifies and applies one provider notification. The only
// error it returns is ErrSignatureVerification; everything after a valid
// signature is acknowledged, including downstream failures, which are
// logged.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "HandleWebhook")
	defer span.End()

	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.metrics.WebhookEvent("unknown", "rejected")
		s.log.WarnContext(ctx, "webhook signature verification failed", "err", err)
		span.SetStatus(codes.Error, "signature")
		return "", fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	span.SetAttributes(attribute.String("webhook.type", event.Type), attribute.String("webhook.id", event.ID))

	// A verified event is applied in full even if Stripe hangs up; every
	// downstream call carries its own timeout.
	ctx = context.WithoutCancel(ctx)

	key := ""
	if s.dedup != nil && event.ID != "" {
		key = s.dedup.Key(dedupScope, event.ID)
		seen, err := s.dedup.Seen(ctx, key)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "webhook dedup unavailable, processing anyway", "event_id", event.ID, "err", err)
			key = ""
		case seen:
			s.log.InfoContext(ctx, "duplicate webhook delivery skipped", "event_id", event.ID, "type", event.Type)
			s.metrics.WebhookEvent(event.Type, string(OutcomeDuplicate))
			return OutcomeDuplicate, nil
		}
	}

	var outcome Outcome
	switch event.Type {
	case EventCheckoutCompleted:
		outcome = s.checkoutCompleted(ctx, event)
	case EventPaymentFailed:
		outcome = s.paymentFailed(ctx, event)
	default:
		s.log.DebugContext(ctx, "webhook event type not handled", "type", event.Type)
		outcome = OutcomeIgnored
	}

	// A release lets a manual resend from the provider dashboard retry the event.
	if outcome == OutcomeFailed && key != "" {
		if err := s.dedup.Release(ctx, key); err != nil {
			s.log.WarnContext(ctx, "release webhook claim", "event_id", event.ID, "err", err)
		}
	}
	s.metrics.WebhookEvent(event.Type, string(outcome))
	return outcome, nil
}

func (s *Service) checkoutCompleted(ctx context.Context, ev WebhookEvent) Outcome {
	if ev.OrderID == "" {
		s.log.ErrorContext(ctx, "completed session carries no orderId, dropping", "session_id", ev.SessionID, "event_id", ev.ID)
		return OutcomeDropped
	}

	outcome := OutcomeProcessed
	p, err := s.repo.GetBySessionID(ctx, ev.SessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.WarnContext(ctx, "no payment recorded for session", "session_id", ev.SessionID, "order_id", ev.OrderID)
	case err != nil:
		s.log.ErrorContext(ctx, "load payment", "session_id", ev.SessionID, "err", err)
		outcome = OutcomeFailed
	default:
		if p.MarkSucceeded(ev.PaymentIntentID, s.now()) {
			if err := s.update(ctx, p, domain.EventPaymentSucceeded, domain.PaymentSucceeded{
				PaymentID:       p.ID,
				OrderID:         p.OrderID,
				SessionID:       p.SessionID,
				PaymentIntentID: p.PaymentIntentID,
				Amount:          p.Amount,
				At:              p.UpdatedAt,
			}); err != nil {
				s.log.ErrorContext(ctx, "store payment success", "payment_id", p.ID, "err", err)
				outcome = OutcomeFailed
			}
		}
	}

	if err := s.notifier.Confirm(ctx, ev.OrderID); err != nil {
		s.log.ErrorContext(ctx, "notify order confirm failed", "order_id", ev.OrderID, "err", err)
		s.metrics.SagaStep("notify_confirm", metrics.OutcomeError)
		return OutcomeFailed
	}
	s.metrics.SagaStep("notify_confirm", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "order confirmation sent", "order_id", ev.OrderID, "session_id", ev.SessionID)
	return outcome
}

func (s *Service) paymentFailed(ctx context.Context, ev WebhookEvent) Outcome {
	if ev.OrderID == "" {
		s.log.ErrorContext(ctx, "failed payment intent carries no orderId, dropping", "payment_intent", ev.PaymentIntentID, "event_id", ev.ID)
		return OutcomeDropped
	}
	s.log.WarnContext(ctx, "payment failed", "order_id", ev.OrderID, "reason", ev.FailureReason)

	outcome := OutcomeProcessed
	p, err := s.repo.LatestByOrderID(ctx, ev.OrderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		s.log.ErrorContext(ctx, "load payment", "order_id", ev.OrderID, "err", err)
		outcome = OutcomeFailed
	default:
		changed, err := p.MarkFailed(ev.PaymentIntentID, s.now())
		if err != nil {
			s.log.WarnContext(ctx, "failure reported for settled payment", "payment_id", p.ID, "err", err)
		}
		if changed {
			if err := s.update(ctx, p, domain.EventPaymentFailed, domain.PaymentFailed{
				PaymentID:       p.ID,
				OrderID:         p.OrderID,
				PaymentIntentID: p.PaymentIntentID,
				Reason:          ev.FailureReason,
				At:              p.UpdatedAt,
			}); err != nil {
				s.log.ErrorContext(ctx, "store payment failure", "payment_id", p.ID, "err", err)
				outcome = OutcomeFailed
			}
		}
	}

	if err := s.notifier.Cancel(ctx, ev.OrderID); err != nil {
		s.log.ErrorContext(ctx, "notify order cancel failed", "order_id", ev.OrderID, "err", err)
		s.metrics.SagaStep("notify_cancel", metrics.OutcomeError)
		return OutcomeFailed
	}
	s.metrics.SagaStep("notify_cancel", metrics.OutcomeSuccess)
	return outcome
}

func (s *Service) update(ctx context.Context, p domain.Payment, eventType string, payload any) error {
	entry, err := outbox.NewEntry(aggregateType, p.ID, eventType, payload, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, p, entry)
}
