package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

var (
	ErrNotFound      = errors.New("payment not found")
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrAlreadySettled is returned when a succeeded payment would be downgraded.
	ErrAlreadySettled = errors.New("payment already succeeded")
)

// Payment tracks one checkout session. SessionID is the correlation key with
// the payment provider.
type Payment struct {
	ID              string
	OrderID         string
	SessionID       string
	PaymentIntentID string
	Amount          int64
	Status          Status
	CustomerEmail   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewPayment(id, orderID, sessionID, email string, amount int64, now time.Time) (Payment, error) {
	if amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	now = now.UTC()
	return Payment{
		ID:            id,
		OrderID:       orderID,
		SessionID:     sessionID,
		Amount:        amount,
		Status:        StatusPending,
		CustomerEmail: email,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkSucceeded records a completed checkout. Repeating it is a no-op.
func (p *Payment) MarkSucceeded(intentID string, now time.Time) bool {
	if p.Status == StatusSucceeded {
		return false
	}
	p.Status = StatusSucceeded
	if intentID != "" {
		p.PaymentIntentID = intentID
	}
	p.UpdatedAt = now.UTC()
	return true
}

func (p *Payment) MarkFailed(intentID string, now time.Time) (bool, error) {
	switch p.Status {
	case StatusFailed:
		return false, nil
	case StatusSucceeded:
		return false, fmt.Errorf("%w: payment %s", ErrAlreadySettled, p.ID)
	}
	p.Status = StatusFailed
	if intentID != "" {
		p.PaymentIntentID = intentID
	}
	p.UpdatedAt = now.UTC()
	return true, nil
}
