package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/rag"
	"github.com/barefootzenith/supportmesh/store"
)

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	vec []float64
	err error
}

func (e *fixedEmbedder) Embed(context.Context, string) ([]float64, error) {
	return e.vec, e.err
}

func newTestPolicy(t *testing.T, chunks map[string]string) *Policy {
	t.Helper()
	vs := rag.NewInMemoryVectorStore()
	for id, content := range chunks {
		vs.Add(id, content, []float64{1, 0, 0})
	}
	retriever := rag.NewRetriever(&fixedEmbedder{vec: []float64{1, 0, 0}}, vs, 3)
	return NewPolicy(retriever, nil)
}

func TestPolicy_Search(t *testing.T) {
	p := newTestPolicy(t, map[string]string{
		"returns-1": "Returns are accepted within 14 days of delivery.",
	})
	req := protocol.NewRequest(protocol.AgentPolicy, "search_policy",
		map[string]any{"query": "return policy"})

	out, err := p.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Contains(t, out.Result["policy_text"], "14 days")
	assert.Equal(t, "return policy", out.Result["query"])
	assert.Equal(t, "policy_index", out.Result["source"])
}

func TestPolicy_EmptyQueryRejected(t *testing.T) {
	p := newTestPolicy(t, nil)
	req := protocol.NewRequest(protocol.AgentPolicy, "search_policy", nil)

	_, err := p.Handle(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestPolicy_RetrievalFailureIsTransient(t *testing.T) {
	vs := rag.NewInMemoryVectorStore()
	retriever := rag.NewRetriever(&fixedEmbedder{err: errors.New("embedding api down")}, vs, 3)
	p := NewPolicy(retriever, nil)
	req := protocol.NewRequest(protocol.AgentPolicy, "search_policy",
		map[string]any{"query": "shipping"})

	_, err := p.Handle(context.Background(), req)

	require.Error(t, err)
	assert.True(t, protocol.IsTransient(err))
	assert.Equal(t, protocol.KindUnavailable, protocol.KindOf(err))
}

func TestExchange_CheckStock(t *testing.T) {
	stock := store.NewInMemoryStockStore(map[string]int{"SKU-1": 3})
	ex := NewExchange(stock, nil)
	req := protocol.NewRequest(protocol.AgentExchange, "check_stock",
		map[string]any{"sku": "SKU-1"})

	out, err := ex.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, true, out.Result["in_stock"])
	assert.Equal(t, 3, out.Result["units"])
	assert.Equal(t, 3, stock.Remaining("SKU-1"), "check must not reserve")
}

func TestExchange_CheckStockUnknownSKU(t *testing.T) {
	ex := NewExchange(store.NewInMemoryStockStore(nil), nil)
	req := protocol.NewRequest(protocol.AgentExchange, "check_stock",
		map[string]any{"sku": "SKU-404"})

	_, err := ex.Handle(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}

func TestExchange_Reserve(t *testing.T) {
	stock := store.NewInMemoryStockStore(map[string]int{"SKU-1": 2})
	ex := NewExchange(stock, nil)
	req := protocol.NewRequest(protocol.AgentExchange, "reserve_replacement",
		map[string]any{"sku": "SKU-1"})

	out, err := ex.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, true, out.Result["reserved"])
	assert.Equal(t, 1, stock.Remaining("SKU-1"))
}

func TestExchange_OutOfStockIsStructured(t *testing.T) {
	stock := store.NewInMemoryStockStore(map[string]int{"SKU-1": 0})
	ex := NewExchange(stock, nil)
	req := protocol.NewRequest(protocol.AgentExchange, "reserve_replacement",
		map[string]any{"sku": "SKU-1"})

	out, err := ex.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, false, out.Result["reserved"])
	assert.Equal(t, "out_of_stock", out.Result["reason"])
}

func TestExchange_LastUnitRaceHasOneWinner(t *testing.T) {
	stock := store.NewInMemoryStockStore(map[string]int{"SKU-1": 1})
	ex := NewExchange(stock, nil)
	req := protocol.NewRequest(protocol.AgentExchange, "reserve_replacement",
		map[string]any{"sku": "SKU-1"})

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := ex.Handle(context.Background(), req)
			if err == nil {
				results[i], _ = out.Result["reserved"].(bool)
			}
		}(i)
	}
	wg.Wait()

	won := 0
	for _, r := range results {
		if r {
			won++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 0, stock.Remaining("SKU-1"))
}

func TestShipping_GetStatus(t *testing.T) {
	feed := store.NewInMemoryTrackingFeed()
	eta := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	feed.Seed(store.TrackingStatus{
		OrderID:           "ORD-20001",
		Carrier:           "DHL",
		State:             "in_transit",
		EstimatedDelivery: eta,
		LastUpdate:        eta.AddDate(0, 0, -2),
	})
	sh := NewShipping(feed, nil)
	req := protocol.NewRequest(protocol.AgentShipping, "get_status",
		map[string]any{"order_id": "ORD-20001"})

	out, err := sh.Handle(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "in_transit", out.Result["state"])
	assert.Equal(t, "DHL", out.Result["carrier"])
	assert.Equal(t, "2026-04-01T00:00:00Z", out.Result["estimated_delivery"])
}

func TestShipping_UnknownOrderIsNotFound(t *testing.T) {
	sh := NewShipping(store.NewInMemoryTrackingFeed(), nil)
	req := protocol.NewRequest(protocol.AgentShipping, "get_status",
		map[string]any{"order_id": "ORD-404"})

	_, err := sh.Handle(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}
