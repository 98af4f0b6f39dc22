// Package supportmesh provides a high-level façade over the coordinator
// pipeline and its collaborators (stores, retrieval, sessions, history and
// logging) for building customer-support orchestration systems. Most
// applications interact with this package by:
//  1. Creating an Engine via New() (optionally overriding default in-memory services)
//  2. Calling HandleTurn for each user message of a session
//
// The façade delegates orchestration to coordinator.Coordinator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments supply a real model, durable stores and a
// structured logger.
package supportmesh

import (
	"context"

	"github.com/barefootzenith/supportmesh/agent"
	"github.com/barefootzenith/supportmesh/config"
	"github.com/barefootzenith/supportmesh/coordinator"
	"github.com/barefootzenith/supportmesh/history"
	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/model"
	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/rag"
	"github.com/barefootzenith/supportmesh/session"
	"github.com/barefootzenith/supportmesh/store"
)

// Options configures the Engine. Any unset collaborator is initialized with
// an in-memory implementation.
type Options struct {
	// Config carries the engine tuning parameters (timeouts, retry policy,
	// refund window, token budgets).
	Config config.Engine

	// Model drives classification, assembly and history summarization.
	// Defaults to a mock model suitable only for tests.
	Model model.Model

	// Summarizer condenses compacted history. Defaults to a model-backed
	// summarizer over Model.
	Summarizer history.Summarizer

	// Collaborator stores.
	Orders   store.OrderStore
	Stock    store.StockStore
	Tracking store.TrackingFeed

	// Retrieval for the policy agent.
	Embedder rag.EmbeddingProvider
	Vectors  rag.VectorStore

	// Sessions holds per-conversation state.
	Sessions session.Store

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine is the high-level façade aggregating the coordinator and services.
type Engine struct {
	opts     Options
	coord    *coordinator.Coordinator
	sessions session.Store
	logger   logging.Logger
}

// TurnResult is the product of one handled user turn.
type TurnResult struct {
	Reply          coordinator.ResponseTemplate
	Intent         coordinator.Intent
	Confidence     float64
	State          coordinator.TurnState
	AgentResponses map[protocol.AgentName]protocol.Response
	HistoryStats   history.Stats
	TokensUsed     int
}

// New creates an Engine with optional overrides.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:   config.Default(),
		Orders:   store.NewInMemoryOrderStore(),
		Stock:    store.NewInMemoryStockStore(nil),
		Tracking: store.NewInMemoryTrackingFeed(),
		Embedder: rag.NewHashingEmbedder(256),
		Vectors:  rag.NewInMemoryVectorStore(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Model == nil {
		opts.Model = model.NewMockModel("dev", "mock")
	}
	if opts.Summarizer == nil {
		opts.Summarizer = history.ModelSummarizer{Model: opts.Model}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	cfg := opts.Config
	if opts.Sessions == nil {
		summarizer := opts.Summarizer
		logger := opts.Logger
		opts.Sessions = session.NewInMemoryStore(func() (*history.Manager, error) {
			return history.NewManager(history.Config{
				MaxTokens:    cfg.MaxTokens,
				TargetTokens: cfg.TargetTokens,
				KeepRecent:   cfg.KeepRecentMessages,
			}, summarizer, logger)
		})
	}

	retriever := rag.NewRetriever(opts.Embedder, opts.Vectors, cfg.RAGTopK)
	exec := agent.NewExecutor(agent.ExecutorConfig{
		Timeout:     cfg.AgentTimeout,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, int64(cfg.MaxInflightCalls), opts.Logger)

	coord, err := coordinator.New(opts.Model, exec, []agent.Agent{
		agent.NewPolicy(retriever, opts.Logger),
		agent.NewTransaction(opts.Orders, cfg.RefundWindowDays, opts.Logger),
		agent.NewExchange(opts.Stock, opts.Logger),
		agent.NewShipping(opts.Tracking, opts.Logger),
	}, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts:     opts,
		coord:    coord,
		sessions: opts.Sessions,
		logger:   opts.Logger,
	}, nil
}

// HandleTurn runs one user message through the pipeline for the given
// session. Turns within a session are serialized; concurrent calls for the
// same session block until the prior turn finishes.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, message string) (TurnResult, error) {
	sess, err := e.sessions.GetOrCreate(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	sess.Lock()
	defer sess.Unlock()

	sess.History.AddTurn(history.RoleUser, message)

	out, err := e.coord.HandleTurn(ctx, coordinator.TurnInput{
		SessionID: sessionID,
		Message:   message,
		History:   sess.History.Context(),
		Pending:   sess.Pending,
	})
	if err != nil {
		return TurnResult{}, err
	}
	sess.Pending = out.Pending

	sess.History.AddTurn(history.RoleAssistant, out.Reply.Message)
	if err := sess.History.MaybeCompact(ctx); err != nil {
		// Budget violations are fatal misconfiguration, not a degraded turn.
		return TurnResult{}, err
	}

	return TurnResult{
		Reply:          out.Reply,
		Intent:         out.Intent,
		Confidence:     out.Confidence,
		State:          out.State,
		AgentResponses: out.AgentResponses,
		HistoryStats:   sess.History.GetStats(),
		TokensUsed:     out.TokensUsed,
	}, nil
}

// SessionStats returns the history usage snapshot for a session.
func (e *Engine) SessionStats(sessionID string) (history.Stats, error) {
	sess, err := e.sessions.GetOrCreate(sessionID)
	if err != nil {
		return history.Stats{}, err
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.History.GetStats(), nil
}

// ResetSession drops a session's history and any pending action.
func (e *Engine) ResetSession(sessionID string) error {
	return e.sessions.Delete(sessionID)
}
