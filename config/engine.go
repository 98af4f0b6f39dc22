package config

import (
	"time"

	"github.com/barefootzenith/supportmesh/protocol"
)

// Engine holds the tuning parameters for the orchestration engine. Defaults
// match the envconfig tags so a zero-environment load is fully usable.
type Engine struct {
	// Agent executor.
	AgentTimeout time.Duration `envconfig:"AGENT_TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
	BackoffBase  time.Duration `envconfig:"BACKOFF_BASE" split_words:"true" default:"1s"`
	BackoffCap   time.Duration `envconfig:"BACKOFF_CAP" split_words:"true" default:"10s"`

	// Shared permit bounding concurrent collaborator calls.
	MaxInflightCalls int `envconfig:"MAX_INFLIGHT_CALLS" split_words:"true" default:"5"`

	// Transaction policy.
	RefundWindowDays int `envconfig:"REFUND_WINDOW_DAYS" split_words:"true" default:"14"`

	// RAG retrieval.
	RAGTopK int `envconfig:"RAG_TOP_K" split_words:"true" default:"3"`

	// Conversation history budgets.
	MaxTokens          int `envconfig:"MAX_TOKENS" split_words:"true" default:"8000"`
	TargetTokens       int `envconfig:"TARGET_TOKENS" split_words:"true" default:"6000"`
	KeepRecentMessages int `envconfig:"KEEP_RECENT_MESSAGES" split_words:"true" default:"8"`
}

// Default returns an Engine with the same values the envconfig defaults
// produce, for callers that wire the engine without touching the environment.
func Default() Engine {
	return Engine{
		AgentTimeout:       30 * time.Second,
		MaxRetries:         3,
		BackoffBase:        time.Second,
		BackoffCap:         10 * time.Second,
		MaxInflightCalls:   5,
		RefundWindowDays:   14,
		RAGTopK:            3,
		MaxTokens:          8000,
		TargetTokens:       6000,
		KeepRecentMessages: 8,
	}
}

// Validate rejects configurations the engine cannot run under.
func (e Engine) Validate() error {
	if e.AgentTimeout <= 0 {
		return protocol.Configurationf("agent timeout must be positive, got %s", e.AgentTimeout)
	}
	if e.MaxRetries < 1 {
		return protocol.Configurationf("max retries must be at least 1, got %d", e.MaxRetries)
	}
	if e.MaxInflightCalls < 1 {
		return protocol.Configurationf("max inflight calls must be at least 1, got %d", e.MaxInflightCalls)
	}
	if e.TargetTokens <= 0 || e.MaxTokens <= 0 || e.TargetTokens > e.MaxTokens {
		return protocol.Configurationf("token budgets invalid: target=%d max=%d", e.TargetTokens, e.MaxTokens)
	}
	if e.KeepRecentMessages < 0 {
		return protocol.Configurationf("keep recent messages must be non-negative, got %d", e.KeepRecentMessages)
	}
	return nil
}
