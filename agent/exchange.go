package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/store"
)

// Exchange reserves replacement stock for product exchanges. The reservation
// is a single atomic check-then-reserve call so two racing exchanges against
// the last unit cannot both succeed.
type Exchange struct {
	stock  store.StockStore
	logger logging.Logger
}

// NewExchange constructs the exchange agent.
func NewExchange(stock store.StockStore, logger logging.Logger) *Exchange {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Exchange{stock: stock, logger: logger}
}

func (e *Exchange) Name() protocol.AgentName { return protocol.AgentExchange }

func (e *Exchange) Handle(ctx context.Context, req protocol.Request) (Outcome, error) {
	switch req.Task {
	case "check_stock":
		return e.checkStock(ctx, req)
	case "reserve_replacement":
		return e.reserve(ctx, req)
	default:
		return Outcome{}, protocol.Permanent(protocol.KindValidation,
			fmt.Errorf("unknown exchange task %q", req.Task))
	}
}

func (e *Exchange) checkStock(ctx context.Context, req protocol.Request) (Outcome, error) {
	sku, _ := req.Context["sku"].(string)
	if sku == "" {
		return Outcome{Result: map[string]any{"missing_sku": true}}, nil
	}
	n, err := e.stock.Available(ctx, sku)
	if err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	return Outcome{Result: map[string]any{
		"sku":      sku,
		"units":    n,
		"in_stock": n > 0,
	}}, nil
}

func (e *Exchange) reserve(ctx context.Context, req protocol.Request) (Outcome, error) {
	sku, _ := req.Context["sku"].(string)
	if sku == "" {
		return Outcome{Result: map[string]any{"missing_sku": true}}, nil
	}
	err := e.stock.Reserve(ctx, sku)
	switch {
	case err == nil:
		e.logger.Info("replacement reserved", "sku", sku)
		return Outcome{Result: map[string]any{"sku": sku, "reserved": true}}, nil
	case errors.Is(err, store.ErrOutOfStock):
		// Business outcome, not a call failure.
		return Outcome{Result: map[string]any{"sku": sku, "reserved": false, "reason": "out_of_stock"}}, nil
	default:
		return Outcome{}, classifyStoreErr(err)
	}
}
