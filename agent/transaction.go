package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/store"
)

// Eligibility is the structured refund-eligibility verdict. An ineligible
// order is still a successful check; the verdict carries the business reason.
type Eligibility struct {
	Eligible      bool   `json:"eligible"`
	Reason        string `json:"reason,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// Transaction handles order lookups, refund eligibility checks and refund
// processing against the order store.
type Transaction struct {
	orders     store.OrderStore
	windowDays int
	logger     logging.Logger

	// now is swapped in tests for deterministic window arithmetic.
	now func() time.Time
}

// NewTransaction constructs the transaction agent with the given refund
// window in days.
func NewTransaction(orders store.OrderStore, windowDays int, logger logging.Logger) *Transaction {
	if windowDays < 1 {
		windowDays = 14
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Transaction{orders: orders, windowDays: windowDays, logger: logger, now: time.Now}
}

func (t *Transaction) Name() protocol.AgentName { return protocol.AgentTransaction }

// Handle dispatches on the request task. Unknown tasks are a permanent
// validation failure.
func (t *Transaction) Handle(ctx context.Context, req protocol.Request) (Outcome, error) {
	switch req.Task {
	case "get_order":
		return t.getOrder(ctx, req)
	case "check_eligibility":
		return t.checkEligibility(ctx, req)
	case "process_refund":
		return t.processRefund(ctx, req)
	default:
		return Outcome{}, protocol.Permanent(protocol.KindValidation,
			fmt.Errorf("unknown transaction task %q", req.Task))
	}
}

func (t *Transaction) getOrder(ctx context.Context, req protocol.Request) (Outcome, error) {
	id, ok := orderID(req)
	if !ok {
		return Outcome{Result: map[string]any{"missing_order_id": true}}, nil
	}
	order, err := t.orders.Get(ctx, id)
	if err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	return Outcome{Result: map[string]any{"order": orderResult(order)}}, nil
}

func (t *Transaction) checkEligibility(ctx context.Context, req protocol.Request) (Outcome, error) {
	id, ok := orderID(req)
	if !ok {
		return Outcome{Result: map[string]any{"missing_order_id": true}}, nil
	}
	order, err := t.orders.Get(ctx, id)
	if err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	elig := t.evaluate(order)
	t.logger.Debug("eligibility evaluated",
		"order_id", order.ID, "eligible", elig.Eligible, "reason", elig.Reason)
	return Outcome{Result: map[string]any{
		"order_id":    order.ID,
		"eligibility": elig,
		"amount":      order.Total(),
	}}, nil
}

// evaluate applies the eligibility checks in fail-fast order: already
// refunded, purchase window, then order status.
func (t *Transaction) evaluate(order store.Order) Eligibility {
	if order.Status == store.StatusReturned || order.Refund != nil {
		return Eligibility{Eligible: false, Reason: "already_processed"}
	}
	elapsed := t.now().UTC().Sub(order.PurchaseDate.UTC())
	window := time.Duration(t.windowDays) * 24 * time.Hour
	if elapsed > window {
		return Eligibility{Eligible: false, Reason: "window_expired"}
	}
	if order.Status != store.StatusDelivered {
		return Eligibility{Eligible: false, Reason: "ineligible_status"}
	}
	remaining := int((window - elapsed) / (24 * time.Hour))
	return Eligibility{Eligible: true, DaysRemaining: remaining}
}

func (t *Transaction) processRefund(ctx context.Context, req protocol.Request) (Outcome, error) {
	id, ok := orderID(req)
	if !ok {
		return Outcome{Result: map[string]any{"missing_order_id": true}}, nil
	}
	order, err := t.orders.Get(ctx, id)
	if err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	if elig := t.evaluate(order); !elig.Eligible {
		return Outcome{Result: map[string]any{
			"order_id":    order.ID,
			"eligibility": elig,
		}}, nil
	}
	txnID := "TXN-" + uuid.NewString()
	if err := t.orders.UpdateStatus(ctx, id, store.StatusReturned, txnID); err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	t.logger.Info("refund processed",
		"order_id", order.ID, "transaction_id", txnID, "amount", order.Total())
	return Outcome{Result: map[string]any{
		"order_id":       order.ID,
		"transaction_id": txnID,
		"amount":         order.Total(),
		"refunded":       true,
	}}, nil
}

// orderID extracts the order id from the request context.
func orderID(req protocol.Request) (string, bool) {
	v, ok := req.Context["order_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// orderResult projects an order into a response-safe map.
func orderResult(o store.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{"name": it.Name, "price": it.Price, "sku": it.SKU})
	}
	res := map[string]any{
		"order_id":      o.ID,
		"user_id":       o.UserID,
		"status":        string(o.Status),
		"purchase_date": o.PurchaseDate.UTC().Format(time.RFC3339),
		"items":         items,
		"total":         o.Total(),
	}
	if o.Refund != nil {
		res["refund"] = map[string]any{
			"transaction_id": o.Refund.TransactionID,
			"date":           o.Refund.Date.UTC().Format(time.RFC3339),
			"amount":         o.Refund.Amount,
		}
	}
	return res
}

// classifyStoreErr maps store sentinels onto protocol error kinds.
func classifyStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return protocol.Permanent(protocol.KindNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return protocol.Permanent(protocol.KindAlreadyProcessed, err)
	case errors.Is(err, store.ErrOutOfStock):
		return protocol.Permanent(protocol.KindOutOfStock, err)
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.Transient(protocol.KindTimeout, err)
	default:
		return protocol.Transient(protocol.KindUnavailable, err)
	}
}
