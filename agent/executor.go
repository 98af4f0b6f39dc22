package agent

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
)

// ExecutorConfig tunes the uniform execution wrapper.
type ExecutorConfig struct {
	// Timeout bounds each attempt of the wrapped domain logic.
	Timeout time.Duration
	// MaxRetries is the total number of attempts (not additional retries).
	MaxRetries int
	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration
	// BackoffCap limits the doubled delay.
	BackoffCap time.Duration
}

// DefaultExecutorConfig mirrors the engine defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffCap:  10 * time.Second,
	}
}

// Executor wraps agents with timeout, retry and permit behavior. One
// Executor is shared by all agents so its semaphore bounds total in-flight
// collaborator calls across the whole engine.
type Executor struct {
	cfg     ExecutorConfig
	permits *semaphore.Weighted
	logger  logging.Logger

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor constructs an Executor with maxInflight shared permits.
func NewExecutor(cfg ExecutorConfig, maxInflight int64, logger logging.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Second
	}
	if maxInflight < 1 {
		maxInflight = 5
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{
		cfg:     cfg,
		permits: semaphore.NewWeighted(maxInflight),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Execute runs the agent's domain logic under the shared permit with
// per-attempt timeout and transient-failure retry. It always produces a
// valid protocol.Response; domain failures never surface as Go errors.
func (e *Executor) Execute(ctx context.Context, ag Agent, req protocol.Request) protocol.Response {
	start := time.Now()
	tokens := 0
	md := func() protocol.Metadata {
		return protocol.Metadata{LatencyMS: time.Since(start).Milliseconds(), TokensUsed: tokens}
	}

	if err := req.Validate(); err != nil {
		return protocol.NewError(ag.Name(), protocol.KindValidation, err.Error(), md())
	}

	if err := e.permits.Acquire(ctx, 1); err != nil {
		// Caller gave up before a permit freed; the elapsed wait is recorded.
		return protocol.NewTimeout(ag.Name(), md())
	}
	defer e.permits.Release(1)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		out, err := ag.Handle(attemptCtx, req)
		cancel()
		tokens += out.TokensUsed

		if err == nil {
			resp := protocol.NewSuccess(ag.Name(), out.Result, md())
			e.logger.Debug("agent call succeeded",
				"agent", string(ag.Name()), "task", req.Task, "attempt", attempt)
			return resp
		}

		if isTimeout(err) {
			lastErr = protocol.Transient(protocol.KindTimeout, err)
		} else {
			lastErr = err
		}

		if !protocol.IsTransient(lastErr) {
			kind := protocol.KindOf(lastErr)
			e.logger.Debug("agent call failed permanently",
				"agent", string(ag.Name()), "task", req.Task, "kind", string(kind))
			return protocol.NewError(ag.Name(), kind, lastErr.Error(), md())
		}

		e.logger.Warn("agent call failed, will retry",
			"agent", string(ag.Name()), "task", req.Task,
			"attempt", attempt, "max_attempts", e.cfg.MaxRetries, "error", lastErr.Error())

		if attempt < e.cfg.MaxRetries {
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return protocol.NewTimeout(ag.Name(), md())
			}
		}
	}

	if protocol.KindOf(lastErr) == protocol.KindTimeout {
		return protocol.NewTimeout(ag.Name(), md())
	}
	return protocol.NewError(ag.Name(), protocol.KindExhaustedRetries,
		"retries exhausted: "+lastErr.Error(), md())
}

// backoff returns the delay before the next attempt: base doubled per
// completed attempt, capped.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.cfg.BackoffBase << (attempt - 1)
	if d > e.cfg.BackoffCap {
		d = e.cfg.BackoffCap
	}
	return d
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
