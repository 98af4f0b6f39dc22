package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryOrderStore_GetUnknown(t *testing.T) {
	s := NewInMemoryOrderStore()

	_, err := s.Get(context.Background(), "ORD-404")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryOrderStore_GetReturnsCopy(t *testing.T) {
	s := NewInMemoryOrderStore()
	s.Seed(Order{ID: "ORD-1", Status: StatusDelivered, Items: []OrderItem{{Name: "a", Price: 10}}})

	o, err := s.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	o.Status = StatusCancelled

	again, err := s.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, again.Status)
}

func TestInMemoryOrderStore_UpdateStatus(t *testing.T) {
	s := NewInMemoryOrderStore()
	s.Seed(Order{ID: "ORD-1", Status: StatusDelivered, Items: []OrderItem{{Price: 25}, {Price: 75}}})

	require.NoError(t, s.UpdateStatus(context.Background(), "ORD-1", StatusReturned, "TXN-abc"))

	o, err := s.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, o.Status)
	require.NotNil(t, o.Refund)
	assert.Equal(t, "TXN-abc", o.Refund.TransactionID)
	assert.Equal(t, 100.0, o.Refund.Amount)
	assert.WithinDuration(t, time.Now().UTC(), o.Refund.Date, time.Minute)
}

func TestInMemoryOrderStore_UpdateStatusTerminalConflict(t *testing.T) {
	s := NewInMemoryOrderStore()
	s.Seed(Order{ID: "ORD-1", Status: StatusReturned})

	err := s.UpdateStatus(context.Background(), "ORD-1", StatusReturned, "TXN-dup")

	assert.ErrorIs(t, err, ErrConflict)
}

func TestInMemoryOrderStore_UpdateStatusUnknown(t *testing.T) {
	s := NewInMemoryOrderStore()

	err := s.UpdateStatus(context.Background(), "ORD-404", StatusReturned, "TXN-x")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStockStore_ReserveRace(t *testing.T) {
	s := NewInMemoryStockStore(map[string]int{"SKU-1": 3})

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Reserve(context.Background(), "SKU-1")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrOutOfStock)
		}
	}
	assert.Equal(t, 3, won)
	assert.Equal(t, 0, s.Remaining("SKU-1"))
}

func TestInMemoryStockStore_Available(t *testing.T) {
	s := NewInMemoryStockStore(map[string]int{"SKU-1": 2})

	n, err := s.Available(context.Background(), "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Available(context.Background(), "SKU-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryTrackingFeed(t *testing.T) {
	f := NewInMemoryTrackingFeed()
	f.Seed(TrackingStatus{OrderID: "ORD-1", Carrier: "UPS", State: "delivered"})

	ts, err := f.GetStatus(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "delivered", ts.State)

	_, err = f.GetStatus(context.Background(), "ORD-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderTotal(t *testing.T) {
	o := Order{Items: []OrderItem{{Price: 19.99}, {Price: 0.01}}}
	assert.InDelta(t, 20.0, o.Total(), 1e-9)
	assert.Zero(t, Order{}.Total())
}
