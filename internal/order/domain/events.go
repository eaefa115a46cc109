package domain

import "time"

const (
	EventOrderConfirmed       = "OrderConfirmed"
	EventOrderCancelled       = "OrderCancelled"
	EventStockReductionFailed = "StockReductionFailed"
)

type OrderConfirmed struct {
	OrderID     string      `json:"orderId"`
	UserEmail   string      `json:"userEmail"`
	TotalAmount int64       `json:"totalAmount"`
	Items       []EventItem `json:"items"`
	At          time.Time   `json:"at"`
}

type OrderCancelled struct {
	OrderID string    `json:"orderId"`
	At      time.Time `json:"at"`
}

// StockReductionFailed records a line whose stock was not decremented after
// the order was confirmed. Consumers reconcile it.
type StockReductionFailed struct {
	OrderID   string    `json:"orderId"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

type EventItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func NewOrderConfirmed(o Order) OrderConfirmed {
	items := make([]EventItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = EventItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return OrderConfirmed{
		OrderID:     o.ID,
		UserEmail:   o.UserEmail,
		TotalAmount: o.TotalAmount,
		Items:       items,
		At:          o.UpdatedAt,
	}
}
