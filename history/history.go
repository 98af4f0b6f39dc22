// Package history bounds the conversation context any model call sees. The
// Manager tracks per-turn token usage and, once usage crosses the target
// budget, compacts the middle of the conversation: the first turn (system
// anchor) and the most recent turns are always kept verbatim, everything
// between is summarized or, if summarization fails, pruned oldest-first.
//
// A Manager is owned by exactly one session and must not be mutated by two
// concurrent turns; the session store serializes turn processing per session.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
)

// Config holds the token budgets for one conversation.
type Config struct {
	// MaxTokens is the hard context limit. Exceeding it after a compaction
	// pass is a fatal configuration error.
	MaxTokens int
	// TargetTokens is the soft limit that triggers compaction. Usage may
	// transiently exceed it between turns, never MaxTokens.
	TargetTokens int
	// KeepRecent is the number of most recent turns always kept verbatim.
	KeepRecent int
}

// Stats is a point-in-time usage snapshot.
type Stats struct {
	TotalMessages int     `json:"total_messages"`
	TotalTokens   int     `json:"total_tokens"`
	SummaryTokens int     `json:"summary_tokens"`
	UsagePercent  float64 `json:"usage_percent"`
	NearLimit     bool    `json:"near_limit"`
}

// Manager maintains one session's turn history and compaction state.
type Manager struct {
	cfg        Config
	summarizer Summarizer
	logger     logging.Logger

	turns   []Turn
	summary *Summary
	nextOrd int
}

// NewManager constructs a Manager. A nil summarizer disables summarization;
// compaction then always falls back to pruning.
func NewManager(cfg Config, summarizer Summarizer, logger logging.Logger) (*Manager, error) {
	if cfg.MaxTokens <= 0 || cfg.TargetTokens <= 0 || cfg.TargetTokens > cfg.MaxTokens {
		return nil, protocol.Configurationf("history token budgets invalid: target=%d max=%d", cfg.TargetTokens, cfg.MaxTokens)
	}
	if cfg.KeepRecent < 0 {
		return nil, protocol.Configurationf("keep recent must be non-negative, got %d", cfg.KeepRecent)
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Manager{cfg: cfg, summarizer: summarizer, logger: logger}, nil
}

// AddTurn appends a turn with its computed token count. It never blocks on
// collaborators; callers run MaybeCompact afterwards.
func (m *Manager) AddTurn(role Role, text string) Turn {
	t := Turn{
		Role:       role,
		Text:       text,
		TokenCount: EstimateTokens(text),
		Ordinal:    m.nextOrd,
		Timestamp:  time.Now().UTC(),
	}
	m.nextOrd++
	m.turns = append(m.turns, t)
	m.logger.Debug("turn appended",
		"role", string(role), "tokens", t.TokenCount, "total_tokens", m.TotalTokens())
	return t
}

// TotalTokens returns the current context cost: retained turns plus summary.
func (m *Manager) TotalTokens() int {
	total := 0
	for _, t := range m.turns {
		total += t.TokenCount
	}
	if m.summary != nil {
		total += m.summary.TokenCount
	}
	return total
}

// GetStats returns a usage snapshot.
func (m *Manager) GetStats() Stats {
	total := m.TotalTokens()
	st := Stats{
		TotalMessages: len(m.turns),
		TotalTokens:   total,
		UsagePercent:  float64(total) / float64(m.cfg.MaxTokens),
		NearLimit:     total >= m.cfg.TargetTokens,
	}
	if m.summary != nil {
		st.SummaryTokens = m.summary.TokenCount
	}
	return st
}

// Summary returns the current summary, or nil.
func (m *Manager) Summary() *Summary { return m.summary }

// Turns returns a copy of the retained turns.
func (m *Manager) Turns() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Clear drops all turns and the summary.
func (m *Manager) Clear() {
	m.turns = nil
	m.summary = nil
}

// Context renders the summary block and retained turns for prompt building.
func (m *Manager) Context() string {
	var b strings.Builder
	if m.summary != nil {
		b.WriteString("[EARLIER CONVERSATION SUMMARY]\n")
		b.WriteString(m.summary.Text)
		b.WriteString("\n\n")
	}
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// MaybeCompact runs a compaction pass if usage has reached the target
// budget. It is idempotent: a second call with no intervening AddTurn is a
// no-op. The returned error is non-nil only for fatal configuration
// violations (the retained head and tail alone exceed the hard limit).
func (m *Manager) MaybeCompact(ctx context.Context) error {
	if m.TotalTokens() < m.cfg.TargetTokens {
		return nil
	}

	head, middle, tail := m.partition()
	if len(middle) == 0 {
		return m.checkBound()
	}

	tokensBefore := m.TotalTokens()

	if m.summarizer != nil {
		if err := m.summarizeMiddle(ctx, head, middle, tail); err == nil {
			m.logger.Info("history compacted",
				"mode", "summarize", "tokens_before", tokensBefore, "tokens_after", m.TotalTokens())
			return m.checkBound()
		} else {
			m.logger.Warn("summarization failed, falling back to pruning", "error", err.Error())
		}
	}

	m.pruneMiddle(head, middle, tail)
	m.logger.Info("history compacted",
		"mode", "prune", "tokens_before", tokensBefore, "tokens_after", m.TotalTokens())
	return m.checkBound()
}

// partition splits retained turns into the anchor head (earliest turn), the
// verbatim tail (most recent KeepRecent turns) and the compactable middle.
func (m *Manager) partition() (head []Turn, middle []Turn, tail []Turn) {
	if len(m.turns) == 0 {
		return nil, nil, nil
	}
	head = m.turns[:1]
	rest := m.turns[1:]
	if len(rest) <= m.cfg.KeepRecent {
		return head, nil, rest
	}
	cut := len(rest) - m.cfg.KeepRecent
	return head, rest[:cut], rest[cut:]
}

// summarizeMiddle replaces the middle with a single summary, folding any
// prior summary into the condensed material so no covered turn is lost.
func (m *Manager) summarizeMiddle(ctx context.Context, head, middle, tail []Turn) error {
	material := middle
	firstCovered := middle[0].Ordinal
	if m.summary != nil {
		prior := Turn{Role: RoleSystem, Text: "Earlier summary: " + m.summary.Text}
		material = append([]Turn{prior}, middle...)
		firstCovered = m.summary.FirstTurn
	}

	text, err := m.summarizer.Summarize(ctx, material, 4)
	if err != nil {
		return err
	}

	middleTokens := 0
	for _, t := range middle {
		middleTokens += t.TokenCount
	}
	summaryTokens := EstimateTokens(text)
	ratio := 0.0
	if middleTokens > 0 {
		ratio = 1 - float64(summaryTokens)/float64(middleTokens)
	}

	m.summary = &Summary{
		Text:       text,
		FirstTurn:  firstCovered,
		LastTurn:   middle[len(middle)-1].Ordinal,
		TokenCount: summaryTokens,
	}
	m.turns = append(append([]Turn{}, head...), tail...)
	m.logger.Debug("middle summarized",
		"covered_turns", len(middle), "summary_tokens", summaryTokens, "compression_ratio", ratio)
	return nil
}

// pruneMiddle drops the oldest middle turns until usage falls under the
// target budget or the middle is exhausted. Head and tail are never pruned.
func (m *Manager) pruneMiddle(head, middle, tail []Turn) {
	fixed := 0
	for _, t := range head {
		fixed += t.TokenCount
	}
	for _, t := range tail {
		fixed += t.TokenCount
	}
	if m.summary != nil {
		fixed += m.summary.TokenCount
	}

	remaining := append([]Turn{}, middle...)
	for len(remaining) > 0 {
		total := fixed
		for _, t := range remaining {
			total += t.TokenCount
		}
		if total < m.cfg.TargetTokens {
			break
		}
		remaining = remaining[1:]
	}

	m.turns = append(append(append([]Turn{}, head...), remaining...), tail...)
}

// checkBound enforces the hard post-condition. Pruning never removes head or
// tail, so a violation here means the configuration itself cannot hold the
// conversation and must be surfaced, not silently truncated.
func (m *Manager) checkBound() error {
	if total := m.TotalTokens(); total > m.cfg.MaxTokens {
		return protocol.Configurationf(
			"history cannot satisfy token budget: total=%d max=%d keep_recent=%d", total, m.cfg.MaxTokens, m.cfg.KeepRecent)
	}
	return nil
}
