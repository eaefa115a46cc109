package application

import (
	"context"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
)

// pooledRepository runs every store call on the worker pool so request
// goroutines only ever wait on a future.
type pooledRepository struct {
	inner OrderRepository
	pool  *workerpool.Pool
}

func newPooledRepository(inner OrderRepository, pool *workerpool.Pool) OrderRepository {
	if pool == nil {
		return inner
	}
	return &pooledRepository{inner: inner, pool: pool}
}

type none struct{}

func (r *pooledRepository) Create(ctx context.Context, o domain.Order) error {
	_, err := workerpool.Do(ctx, r.pool, func(ctx context.Context) (none, error) {
		return none{}, r.inner.Create(ctx, o)
	})
	return err
}

func (r *pooledRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	return workerpool.Do(ctx, r.pool, func(ctx context.Context) (domain.Order, error) {
		return r.inner.Get(ctx, id)
	})
}

func (r *pooledRepository) ListByUser(ctx context.Context, email string) ([]domain.Order, error) {
	return workerpool.Do(ctx, r.pool, func(ctx context.Context) ([]domain.Order, error) {
		return r.inner.ListByUser(ctx, email)
	})
}

func (r *pooledRepository) UpdateStatus(ctx context.Context, o domain.Order, entry outbox.Entry) error {
	_, err := workerpool.Do(ctx, r.pool, func(ctx context.Context) (none, error) {
		return none{}, r.inner.UpdateStatus(ctx, o, entry)
	})
	return err
}

func (r *pooledRepository) AppendEvent(ctx context.Context, entry outbox.Entry) error {
	_, err := workerpool.Do(ctx, r.pool, func(ctx context.Context) (none, error) {
		return none{}, r.inner.AppendEvent(ctx, entry)
	})
	return err
}
