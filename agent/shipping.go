package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/store"
)

// Shipping reports the tracking status of an order from the tracking feed.
type Shipping struct {
	feed   store.TrackingFeed
	logger logging.Logger
}

// NewShipping constructs the shipping agent over the given tracking feed.
func NewShipping(feed store.TrackingFeed, logger logging.Logger) *Shipping {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Shipping{feed: feed, logger: logger}
}

func (s *Shipping) Name() protocol.AgentName { return protocol.AgentShipping }

func (s *Shipping) Handle(ctx context.Context, req protocol.Request) (Outcome, error) {
	if req.Task != "get_status" {
		return Outcome{}, protocol.Permanent(protocol.KindValidation,
			fmt.Errorf("unknown shipping task %q", req.Task))
	}
	id, ok := orderID(req)
	if !ok {
		return Outcome{Result: map[string]any{"missing_order_id": true}}, nil
	}
	ts, err := s.feed.GetStatus(ctx, id)
	if err != nil {
		return Outcome{}, classifyStoreErr(err)
	}
	s.logger.Debug("tracking status fetched", "order_id", id, "state", ts.State)
	return Outcome{Result: map[string]any{
		"order_id":           ts.OrderID,
		"carrier":            ts.Carrier,
		"state":              ts.State,
		"estimated_delivery": ts.EstimatedDelivery.UTC().Format(time.RFC3339),
		"last_update":        ts.LastUpdate.UTC().Format(time.RFC3339),
	}}, nil
}
