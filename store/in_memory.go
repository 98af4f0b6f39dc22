package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryOrderStore is a volatile OrderStore backed by a process-local map.
// Safe for concurrent access; suited to tests and demos.
type InMemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewInMemoryOrderStore constructs an empty order store.
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{orders: make(map[string]Order)}
}

// Seed inserts or replaces an order. Test helper.
func (s *InMemoryOrderStore) Seed(orders ...Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		s.orders[o.ID] = o
	}
}

// Get implements OrderStore.
func (s *InMemoryOrderStore) Get(_ context.Context, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// UpdateStatus implements OrderStore. Orders already in a terminal refund
// state reject further transitions with ErrConflict.
func (s *InMemoryOrderStore) UpdateStatus(_ context.Context, orderID string, newStatus OrderStatus, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status == StatusReturned || o.Status == StatusCancelled {
		return ErrConflict
	}
	o.Status = newStatus
	if newStatus == StatusReturned {
		o.Refund = &RefundRecord{TransactionID: transactionID, Date: time.Now().UTC(), Amount: o.Total()}
	}
	s.orders[orderID] = o
	return nil
}

// InMemoryStockStore is a volatile StockStore. Reservation is atomic under
// the store mutex: of two racing reservations against the last unit, exactly
// one succeeds.
type InMemoryStockStore struct {
	mu    sync.Mutex
	units map[string]int
}

// NewInMemoryStockStore constructs a stock store with the given sku counts.
func NewInMemoryStockStore(units map[string]int) *InMemoryStockStore {
	cp := make(map[string]int, len(units))
	for k, v := range units {
		cp[k] = v
	}
	return &InMemoryStockStore{units: cp}
}

// Available implements StockStore.
func (s *InMemoryStockStore) Available(_ context.Context, sku string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.units[sku]
	if !ok {
		return 0, ErrNotFound
	}
	return n, nil
}

// Reserve implements StockStore.
func (s *InMemoryStockStore) Reserve(_ context.Context, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.units[sku] <= 0 {
		return ErrOutOfStock
	}
	s.units[sku]--
	return nil
}

// Remaining returns the unreserved unit count for sku. Test helper.
func (s *InMemoryStockStore) Remaining(sku string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units[sku]
}

// InMemoryTrackingFeed is a volatile TrackingFeed.
type InMemoryTrackingFeed struct {
	mu       sync.RWMutex
	statuses map[string]TrackingStatus
}

// NewInMemoryTrackingFeed constructs an empty tracking feed.
func NewInMemoryTrackingFeed() *InMemoryTrackingFeed {
	return &InMemoryTrackingFeed{statuses: make(map[string]TrackingStatus)}
}

// Seed inserts or replaces a tracking status. Test helper.
func (f *InMemoryTrackingFeed) Seed(statuses ...TrackingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range statuses {
		f.statuses[st.OrderID] = st
	}
}

// GetStatus implements TrackingFeed.
func (f *InMemoryTrackingFeed) GetStatus(_ context.Context, orderID string) (TrackingStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.statuses[orderID]
	if !ok {
		return TrackingStatus{}, ErrNotFound
	}
	return st, nil
}
