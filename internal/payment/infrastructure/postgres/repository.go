package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/checkout-saga/internal/payment/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columns = `id, order_id, session_id, payment_intent_id, amount, status, customer_email, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Save(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments (`+columns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.OrderID, p.SessionID, p.PaymentIntentID, p.Amount, string(p.Status), p.CustomerEmail, p.CreatedAt, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("payment for session %s already exists", p.SessionID)
	}
	return err
}

func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error) {
	p, err := r.one(ctx, `SELECT `+columns+` FROM payments WHERE session_id=$1`, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return p, err
}

func (r *Repository) LatestByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	p, err := r.one(ctx, `SELECT `+columns+` FROM payments WHERE order_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return p, err
}

func (r *Repository) one(ctx context.Context, query string, arg any) (domain.Payment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return domain.Payment{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanPayment)
}

func scanPayment(row pgx.CollectableRow) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.SessionID, &p.PaymentIntentID, &p.Amount, &p.Status, &p.CustomerEmail, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) Update(ctx context.Context, p domain.Payment, entry outbox.Entry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE payments SET payment_intent_id=$2, status=$3, updated_at=$4 WHERE id=$1`,
		p.ID, p.PaymentIntentID, string(p.Status), p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
	}
	if err := outbox.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return tx.Commit(ctx)
}
