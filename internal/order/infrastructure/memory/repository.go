package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
)

// Repository keeps orders in process memory. Reads return copies so callers
// can never mutate stored state.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	events []outbox.Entry
}

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Create(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return o.Clone(), nil
}

func (r *Repository) ListByUser(_ context.Context, email string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserEmail == email {
			out = append(out, o.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		return b.OrderDate.Compare(a.OrderDate)
	})
	return out, nil
}

func (r *Repository) UpdateStatus(_ context.Context, o domain.Order, entry outbox.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrNotFound)
	}
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	r.orders[o.ID] = stored
	r.events = append(r.events, entry)
	return nil
}

func (r *Repository) AppendEvent(_ context.Context, entry outbox.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, entry)
	return nil
}

// Events returns the outbox entries written so far.
func (r *Repository) Events() []outbox.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
