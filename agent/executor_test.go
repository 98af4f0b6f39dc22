package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
)

// fnAgent adapts a function into an Agent for tests.
type fnAgent struct {
	name protocol.AgentName
	fn   func(ctx context.Context, req protocol.Request) (Outcome, error)
}

func (a *fnAgent) Name() protocol.AgentName { return a.name }

func (a *fnAgent) Handle(ctx context.Context, req protocol.Request) (Outcome, error) {
	return a.fn(ctx, req)
}

func newTestExecutor(cfg ExecutorConfig, maxInflight int64) *Executor {
	e := NewExecutor(cfg, maxInflight, logging.NoOpLogger{})
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestExecutor_Success(t *testing.T) {
	e := newTestExecutor(DefaultExecutorConfig(), 5)
	ag := &fnAgent{name: protocol.AgentPolicy, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		return Outcome{Result: map[string]any{"ok": true}, TokensUsed: 42}, nil
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentPolicy, "search_policy", nil))

	require.NoError(t, resp.Validate())
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, protocol.AgentPolicy, resp.SourceAgent)
	assert.Equal(t, map[string]any{"ok": true}, resp.Result)
	assert.Equal(t, 42, resp.Metadata.TokensUsed)
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	e := newTestExecutor(DefaultExecutorConfig(), 5)
	ag := &fnAgent{name: protocol.AgentShipping, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return Outcome{}, protocol.Transient(protocol.KindUnavailable, errors.New("blip"))
		}
		return Outcome{Result: map[string]any{"state": "in_transit"}}, nil
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentShipping, "get_status", nil))

	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestExecutor_RetryBoundIsTotalAttempts(t *testing.T) {
	var calls int32
	cfg := DefaultExecutorConfig()
	cfg.MaxRetries = 3
	e := newTestExecutor(cfg, 5)
	ag := &fnAgent{name: protocol.AgentPolicy, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return Outcome{}, protocol.Transient(protocol.KindUnavailable, errors.New("still down"))
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentPolicy, "search_policy", nil))

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	require.NoError(t, resp.Validate())
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.KindExhaustedRetries, resp.Error.Kind)
}

func TestExecutor_PermanentFailureNotRetried(t *testing.T) {
	var calls int32
	e := newTestExecutor(DefaultExecutorConfig(), 5)
	ag := &fnAgent{name: protocol.AgentTransaction, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return Outcome{}, protocol.Permanent(protocol.KindNotFound, errors.New("no such order"))
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentTransaction, "get_order", nil))

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.KindNotFound, resp.Error.Kind)
}

func TestExecutor_TimeoutProducesTimeoutStatus(t *testing.T) {
	cfg := DefaultExecutorConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxRetries = 2
	e := newTestExecutor(cfg, 5)
	ag := &fnAgent{name: protocol.AgentShipping, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentShipping, "get_status", nil))

	require.NoError(t, resp.Validate())
	assert.Equal(t, protocol.StatusTimeout, resp.Status)
	assert.Nil(t, resp.Result)
	assert.Nil(t, resp.Error)
	assert.GreaterOrEqual(t, resp.Metadata.LatencyMS, int64(0))
}

func TestExecutor_InvalidRequestRejected(t *testing.T) {
	e := newTestExecutor(DefaultExecutorConfig(), 5)
	ag := &fnAgent{name: protocol.AgentPolicy, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		t.Fatal("handler must not run for an invalid request")
		return Outcome{}, nil
	}}

	resp := e.Execute(context.Background(), ag, protocol.Request{TargetAgent: protocol.AgentPolicy})

	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.KindValidation, resp.Error.Kind)
}

func TestExecutor_PermitBoundsConcurrency(t *testing.T) {
	const permits = 2
	var inflight, peak int32
	release := make(chan struct{})

	e := newTestExecutor(DefaultExecutorConfig(), permits)
	ag := &fnAgent{name: protocol.AgentPolicy, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inflight, -1)
		return Outcome{Result: map[string]any{}}, nil
	}}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentPolicy, "search_policy", nil))
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(permits))
}

func TestExecutor_TokensAccumulateAcrossAttempts(t *testing.T) {
	var calls int32
	e := newTestExecutor(DefaultExecutorConfig(), 5)
	ag := &fnAgent{name: protocol.AgentPolicy, fn: func(ctx context.Context, req protocol.Request) (Outcome, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Outcome{TokensUsed: 10}, protocol.Transient(protocol.KindRateLimited, errors.New("429"))
		}
		return Outcome{Result: map[string]any{}, TokensUsed: 15}, nil
	}}

	resp := e.Execute(context.Background(), ag, protocol.NewRequest(protocol.AgentPolicy, "search_policy", nil))

	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, 25, resp.Metadata.TokensUsed)
}

func TestExecutor_Backoff(t *testing.T) {
	e := NewExecutor(ExecutorConfig{BackoffBase: time.Second, BackoffCap: 10 * time.Second}, 5, nil)

	assert.Equal(t, time.Second, e.backoff(1))
	assert.Equal(t, 2*time.Second, e.backoff(2))
	assert.Equal(t, 4*time.Second, e.backoff(3))
	assert.Equal(t, 8*time.Second, e.backoff(4))
	assert.Equal(t, 10*time.Second, e.backoff(5))
	assert.Equal(t, 10*time.Second, e.backoff(8))
}
