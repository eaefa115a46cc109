package application

import (
	"context"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
	"github.com/dmehra2102/checkout-saga/pkg/outbox"
)

type OrderRepository interface {
	// Create persists the order and its items atomically.
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, email string) ([]domain.Order, error)
	// UpdateStatus stores the new status and the outbox entry in one transaction.
	UpdateStatus(ctx context.Context, o domain.Order, entry outbox.Entry) error
	AppendEvent(ctx context.Context, entry outbox.Entry) error
}

type Product struct {
	ID            int64
	Name          string
	Price         int64
	StockQuantity int
}

type InventoryClient interface {
	GetProduct(ctx context.Context, productID int64, authToken string) (Product, error)
	ReduceStock(ctx context.Context, productID int64, quantity int) error
}

type PaymentRequest struct {
	OrderID       string
	Amount        int64
	CustomerEmail string
	ProductName   string
}

type PaymentClient interface {
	// CreateSession returns the hosted checkout URL.
	CreateSession(ctx context.Context, req PaymentRequest, authToken string) (string, error)
}
