package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO orders (id, user_email, total_amount, status, order_date, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.UserEmail, o.TotalAmount, string(o.Status), o.OrderDate, o.UpdatedAt)
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product_id, quantity, price_at_purchase, item_subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, item.ProductID, item.Quantity, item.PriceAtPurchase, item.Subtotal)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, user_email, total_amount, status, order_date, updated_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserEmail, &o.TotalAmount, &o.Status, &o.OrderDate, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.items(ctx, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, email string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_email, total_amount, status, order_date, updated_at
		FROM orders WHERE user_email=$1 ORDER BY order_date DESC, id`, email)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		var o domain.Order
		err := row.Scan(&o.ID, &o.UserEmail, &o.TotalAmount, &o.Status, &o.OrderDate, &o.UpdatedAt)
		return o, err
	})
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) items(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, product_id, quantity, price_at_purchase, item_subtotal
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.PriceAtPurchase, &it.Subtotal); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

// UpdateStatus writes the status and the outbox entry in one transaction.
// The last writer wins.
func (r *Repository) UpdateStatus(ctx context.Context, o domain.Order, entry outbox.Entry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrNotFound)
	}
	if err := outbox.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) AppendEvent(ctx context.Context, entry outbox.Entry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := outbox.Insert(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
