package application

import (
	"errors"
	"fmt"

	"github.com/dmehra2102/checkout-saga/internal/order/domain"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
	ErrOrderNotFound         = domain.ErrNotFound
	ErrTerminalState         = domain.ErrTerminalState
)

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PaymentSessionError means the order was stored but no checkout session
// could be opened. The order stays PENDING.
type PaymentSessionError struct {
	OrderID string
	Err     error
}

func (e *PaymentSessionError) Error() string {
	return fmt.Sprintf("order %s created but payment session failed: %v", e.OrderID, e.Err)
}

func (e *PaymentSessionError) Unwrap() error { return e.Err }

func (e *PaymentSessionError) Is(target error) bool {
	return target == ErrDownstreamUnavailable
}
