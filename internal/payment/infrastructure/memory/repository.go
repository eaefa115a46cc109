package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
)

type Repository struct {
	mu       sync.RWMutex
	payments []domain.Payment
	events   []outbox.Entry
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Save(_ context.Context, p domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.SessionID == p.SessionID {
			return fmt.Errorf("payment for session %s already exists", p.SessionID)
		}
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *Repository) GetBySessionID(_ context.Context, sessionID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.SessionID == sessionID {
			return p, nil
		}
	}
	return domain.Payment{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
}

func (r *Repository) LatestByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range slices.Backward(r.payments) {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return domain.Payment{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
}

func (r *Repository) Update(_ context.Context, p domain.Payment, entry outbox.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.payments {
		if r.payments[i].ID == p.ID {
			r.payments[i] = p
			r.events = append(r.events, entry)
			return nil
		}
	}
	return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
}

func (r *Repository) Events() []outbox.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}
