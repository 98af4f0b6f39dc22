package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/store"
)

func newTestTransaction(t *testing.T, now time.Time, orders ...store.Order) *Transaction {
	t.Helper()
	st := store.NewInMemoryOrderStore()
	st.Seed(orders...)
	tx := NewTransaction(st, 14, nil)
	tx.now = func() time.Time { return now }
	return tx
}

func eligibilityReq(orderID string) protocol.Request {
	return protocol.NewRequest(protocol.AgentTransaction, "check_eligibility",
		map[string]any{"order_id": orderID})
}

func TestTransaction_EligibleWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := newTestTransaction(t, now, store.Order{
		ID:           "ORD-10001",
		Status:       store.StatusDelivered,
		PurchaseDate: now.AddDate(0, 0, -12),
		Items:        []store.OrderItem{{Name: "Headphones", Price: 79.99}},
	})

	out, err := tx.Handle(context.Background(), eligibilityReq("ORD-10001"))

	require.NoError(t, err)
	elig, ok := out.Result["eligibility"].(Eligibility)
	require.True(t, ok)
	assert.True(t, elig.Eligible)
	assert.Equal(t, 2, elig.DaysRemaining)
	assert.Equal(t, 79.99, out.Result["amount"])
}

func TestTransaction_WindowExpired(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := newTestTransaction(t, now, store.Order{
		ID:           "ORD-10002",
		Status:       store.StatusDelivered,
		PurchaseDate: now.AddDate(0, 0, -20),
	})

	out, err := tx.Handle(context.Background(), eligibilityReq("ORD-10002"))

	require.NoError(t, err)
	elig := out.Result["eligibility"].(Eligibility)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "window_expired", elig.Reason)
}

func TestTransaction_IneligibleStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := newTestTransaction(t, now, store.Order{
		ID:           "ORD-10003",
		Status:       store.StatusShipped,
		PurchaseDate: now.AddDate(0, 0, -2),
	})

	out, err := tx.Handle(context.Background(), eligibilityReq("ORD-10003"))

	require.NoError(t, err)
	elig := out.Result["eligibility"].(Eligibility)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "ineligible_status", elig.Reason)
}

func TestTransaction_AlreadyProcessedBeatsWindow(t *testing.T) {
	// An already refunded order reports already_processed even when the
	// window has also expired.
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := newTestTransaction(t, now, store.Order{
		ID:           "ORD-10004",
		Status:       store.StatusReturned,
		PurchaseDate: now.AddDate(0, 0, -40),
	})

	out, err := tx.Handle(context.Background(), eligibilityReq("ORD-10004"))

	require.NoError(t, err)
	elig := out.Result["eligibility"].(Eligibility)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "already_processed", elig.Reason)
}

func TestTransaction_UnknownOrderIsNotFound(t *testing.T) {
	tx := newTestTransaction(t, time.Now())

	_, err := tx.Handle(context.Background(), eligibilityReq("ORD-99999"))

	require.Error(t, err)
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
	assert.False(t, protocol.IsTransient(err))
}

func TestTransaction_MissingOrderIDIsStructured(t *testing.T) {
	tx := newTestTransaction(t, time.Now())
	req := protocol.NewRequest(protocol.AgentTransaction, "check_eligibility", nil)

	out, err := tx.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, true, out.Result["missing_order_id"])
}

func TestTransaction_ProcessRefund(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewInMemoryOrderStore()
	st.Seed(store.Order{
		ID:           "ORD-10005",
		Status:       store.StatusDelivered,
		PurchaseDate: now.AddDate(0, 0, -3),
		Items:        []store.OrderItem{{Name: "Keyboard", Price: 49.50}, {Name: "Mouse", Price: 20.50}},
	})
	tx := NewTransaction(st, 14, nil)
	tx.now = func() time.Time { return now }

	req := protocol.NewRequest(protocol.AgentTransaction, "process_refund",
		map[string]any{"order_id": "ORD-10005"})
	out, err := tx.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, true, out.Result["refunded"])
	assert.Equal(t, 70.0, out.Result["amount"])
	txnID, _ := out.Result["transaction_id"].(string)
	assert.True(t, strings.HasPrefix(txnID, "TXN-"))

	stored, err := st.Get(context.Background(), "ORD-10005")
	require.NoError(t, err)
	assert.Equal(t, store.StatusReturned, stored.Status)
	require.NotNil(t, stored.Refund)
	assert.Equal(t, txnID, stored.Refund.TransactionID)
}

func TestTransaction_ProcessRefundIneligibleDoesNotMutate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewInMemoryOrderStore()
	st.Seed(store.Order{
		ID:           "ORD-10006",
		Status:       store.StatusDelivered,
		PurchaseDate: now.AddDate(0, 0, -30),
	})
	tx := NewTransaction(st, 14, nil)
	tx.now = func() time.Time { return now }

	req := protocol.NewRequest(protocol.AgentTransaction, "process_refund",
		map[string]any{"order_id": "ORD-10006"})
	out, err := tx.Handle(context.Background(), req)

	require.NoError(t, err)
	elig := out.Result["eligibility"].(Eligibility)
	assert.False(t, elig.Eligible)

	stored, _ := st.Get(context.Background(), "ORD-10006")
	assert.Equal(t, store.StatusDelivered, stored.Status)
}

func TestTransaction_GetOrder(t *testing.T) {
	now := time.Now().UTC()
	tx := newTestTransaction(t, now, store.Order{
		ID:           "ORD-10007",
		UserID:       "user-1",
		Status:       store.StatusDelivered,
		PurchaseDate: now.AddDate(0, 0, -1),
		Items:        []store.OrderItem{{Name: "Lamp", Price: 30}},
	})

	req := protocol.NewRequest(protocol.AgentTransaction, "get_order",
		map[string]any{"order_id": "ORD-10007"})
	out, err := tx.Handle(context.Background(), req)

	require.NoError(t, err)
	order, ok := out.Result["order"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ORD-10007", order["order_id"])
	assert.Equal(t, "DELIVERED", order["status"])
	assert.Equal(t, 30.0, order["total"])
}

func TestTransaction_UnknownTask(t *testing.T) {
	tx := newTestTransaction(t, time.Now())
	req := protocol.NewRequest(protocol.AgentTransaction, "melt_order", nil)

	_, err := tx.Handle(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}
