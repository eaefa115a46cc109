package domain

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidPrice    = errors.New("item price must not be negative")
	ErrTerminalState   = errors.New("order already in a terminal state")
	ErrAmountOverflow  = errors.New("order amount out of range")
)

// Order amounts are in minor currency units.
type Order struct {
	ID          string
	UserEmail   string
	Items       []OrderItem
	TotalAmount int64
	Status      OrderStatus
	OrderDate   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ProductID       int64
	Quantity        int
	PriceAtPurchase int64
	Subtotal        int64
}

// NewOrder builds a PENDING order. Subtotals and the total are computed here
// once and never again.
func NewOrder(id, email string, items []OrderItem, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyOrder
	}

	lines := make([]OrderItem, len(items))
	var total int64
	for i, item := range items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
		if item.PriceAtPurchase < 0 {
			return Order{}, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidPrice)
		}
		hi, lo := bits.Mul64(uint64(item.PriceAtPurchase), uint64(item.Quantity))
		if hi != 0 || lo > math.MaxInt64 {
			return Order{}, fmt.Errorf("product %d subtotal: %w", item.ProductID, ErrAmountOverflow)
		}
		item.Subtotal = int64(lo)
		if total > math.MaxInt64-item.Subtotal {
			return Order{}, fmt.Errorf("order total: %w", ErrAmountOverflow)
		}
		total += item.Subtotal
		lines[i] = item
	}

	now = now.UTC()
	return Order{
		ID:          id,
		UserEmail:   email,
		Items:       lines,
		TotalAmount: total,
		Status:      StatusPending,
		OrderDate:   now,
		UpdatedAt:   now,
	}, nil
}

// Confirm moves a PENDING order to CONFIRMED. Confirming twice is a no-op;
// confirming a cancelled order fails.
func (o *Order) Confirm(now time.Time) (bool, error) {
	return o.transition(StatusConfirmed, now)
}

// Cancel is the mirror of Confirm.
func (o *Order) Cancel(now time.Time) (bool, error) {
	return o.transition(StatusCancelled, now)
}

func (o *Order) transition(to OrderStatus, now time.Time) (bool, error) {
	switch o.Status {
	case to:
		return false, nil
	case StatusPending:
		o.Status = to
		o.UpdatedAt = now.UTC()
		return true, nil
	default:
		return false, fmt.Errorf("%w: order %s is %s, cannot become %s", ErrTerminalState, o.ID, o.Status, to)
	}
}

func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}
