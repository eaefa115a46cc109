package application

import (
	"context"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/dmehra2102/checkout-saga/pkg/workerpool"
)

// pooledRepository moves payment store calls off the request goroutine.
type pooledRepository struct {
	inner PaymentRepository
	pool  *workerpool.Pool
}

func newPooledRepository(inner PaymentRepository, pool *workerpool.Pool) PaymentRepository {
	if pool == nil {
		return inner
	}
	return &pooledRepository{inner: inner, pool: pool}
}

type none struct{}

func (r *pooledRepository) Save(ctx context.Context, p domain.Payment) error {
	_, err := workerpool.Do(ctx, r.pool, func(ctx context.Context) (none, error) {
		return none{}, r.inner.Save(ctx, p)
	})
	return err
}

func (r *pooledRepository) GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error) {
	return workerpool.Do(ctx, r.pool, func(ctx context.Context) (domain.Payment, error) {
		return r.inner.GetBySessionID(ctx, sessionID)
	})
}

func (r *pooledRepository) LatestByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return workerpool.Do(ctx, r.pool, func(ctx context.Context) (domain.Payment, error) {
		return r.inner.LatestByOrderID(ctx, orderID)
	})
}

func (r *pooledRepository) Update(ctx context.Context, p domain.Payment, entry outbox.Entry) error {
	_, err := workerpool.Do(ctx, r.pool, func(ctx context.Context) (none, error) {
		return none{}, r.inner.Update(ctx, p, entry)
	})
	return err
}
