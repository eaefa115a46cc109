package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewOrderComputesTotals(t *testing.T) {
	o, err := NewOrder("o-1", "ann@example.com", []OrderItem{
		{ProductID: 1, Quantity: 2, PriceAtPurchase: 500},
		{ProductID: 2, Quantity: 3, PriceAtPurchase: 1250},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(1000), o.Items[0].Subtotal)
	assert.Equal(t, int64(3750), o.Items[1].Subtotal)
	assert.Equal(t, int64(4750), o.TotalAmount)
	assert.Equal(t, now, o.OrderDate)
}

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("o", "e", nil, now)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = NewOrder("o", "e", []OrderItem{{ProductID: 1, Quantity: 0, PriceAtPurchase: 1}}, now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrder("o", "e", []OrderItem{{ProductID: 1, Quantity: 1, PriceAtPurchase: -1}}, now)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestNewOrderRejectsAmountOverflow(t *testing.T) {
	_, err := NewOrder("o", "e", []OrderItem{{ProductID: 1, Quantity: math.MaxInt, PriceAtPurchase: 500}}, now)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = NewOrder("o", "e", []OrderItem{
		{ProductID: 1, Quantity: 1, PriceAtPurchase: math.MaxInt64},
		{ProductID: 2, Quantity: 1, PriceAtPurchase: 1},
	}, now)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	o, err := NewOrder("o", "e", []OrderItem{{ProductID: 1, Quantity: 1, PriceAtPurchase: math.MaxInt64}}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), o.TotalAmount)
}

func TestNewOrderDoesNotAliasInput(t *testing.T) {
	in := []OrderItem{{ProductID: 1, Quantity: 1, PriceAtPurchase: 10}}
	o, err := NewOrder("o", "e", in, now)
	require.NoError(t, err)
	in[0].Quantity = 99
	assert.Equal(t, 1, o.Items[0].Quantity)
}

func TestTransitions(t *testing.T) {
	later := now.Add(time.Minute)
	tests := []struct {
		name        string
		from        OrderStatus
		confirm     bool
		wantStatus  OrderStatus
		wantChanged bool
		wantErr     error
	}{
		{"confirm pending", StatusPending, true, StatusConfirmed, true, nil},
		{"confirm confirmed", StatusConfirmed, true, StatusConfirmed, false, nil},
		{"confirm cancelled", StatusCancelled, true, StatusCancelled, false, ErrTerminalState},
		{"cancel pending", StatusPending, false, StatusCancelled, true, nil},
		{"cancel cancelled", StatusCancelled, false, StatusCancelled, false, nil},
		{"cancel confirmed", StatusConfirmed, false, StatusConfirmed, false, ErrTerminalState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{ID: "o-1", Status: tt.from, UpdatedAt: now}
			var changed bool
			var err error
			if tt.confirm {
				changed, err = o.Confirm(later)
			} else {
				changed, err = o.Cancel(later)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStatus, o.Status)
			if changed {
				assert.Equal(t, later, o.UpdatedAt)
			} else {
				assert.Equal(t, now, o.UpdatedAt)
			}
		})
	}
}
