// Package store defines the order, stock and tracking collaborator contracts
// the agents depend on, together with in-memory implementations suitable for
// tests and demos. Durable backends implement the same interfaces (see
// store/postgres).
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound reports a missing order or tracking record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a status transition raced by another writer.
	ErrConflict = errors.New("status update conflict")
	// ErrOutOfStock reports a reservation against exhausted stock.
	ErrOutOfStock = errors.New("out of stock")
)

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusReturned  OrderStatus = "RETURNED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// OrderItem is a single line item in an order.
type OrderItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	SKU   string  `json:"sku,omitempty"`
}

// RefundRecord captures a processed refund.
type RefundRecord struct {
	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"`
}

// Order is the complete order record.
type Order struct {
	ID           string      `json:"order_id"`
	UserID       string      `json:"user_id"`
	PurchaseDate time.Time   `json:"purchase_date"`
	Status       OrderStatus `json:"status"`
	Items        []OrderItem `json:"items"`
	Refund       *RefundRecord `json:"refund,omitempty"`
}

// Total returns the sum of item prices.
func (o Order) Total() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.Price
	}
	return sum
}

// OrderStore persists orders.
type OrderStore interface {
	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, orderID string) (Order, error)
	// UpdateStatus transitions the order to newStatus recording the refund
	// transaction id. Returns ErrConflict if the order already reached a
	// terminal refund state, ErrNotFound if the order does not exist.
	UpdateStatus(ctx context.Context, orderID string, newStatus OrderStatus, transactionID string) error
}

// StockStore tracks replacement stock. Reserve must be atomic against
// concurrent callers: of two racing reservations against the last unit,
// exactly one succeeds.
type StockStore interface {
	// Available returns the number of unreserved units, or ErrNotFound for
	// an unknown SKU.
	Available(ctx context.Context, sku string) (int, error)
	// Reserve takes one unit or returns ErrOutOfStock.
	Reserve(ctx context.Context, sku string) error
}

// TrackingFeed exposes the shipping status of an order.
type TrackingFeed interface {
	// GetStatus returns the current tracking status or ErrNotFound.
	GetStatus(ctx context.Context, orderID string) (TrackingStatus, error)
}

// TrackingStatus is a point-in-time shipping snapshot.
type TrackingStatus struct {
	OrderID           string    `json:"order_id"`
	Carrier           string    `json:"carrier"`
	State             string    `json:"state"` // e.g. "in_transit", "delivered"
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	LastUpdate        time.Time `json:"last_update"`
}
