package history

import (
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in the conversation. Turns are append-only during
// a session; compaction replaces whole runs of turns, never edits one.
type Turn struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	Ordinal    int       `json:"ordinal"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary is the condensed representation of previously pruned turns. A
// conversation carries at most one; re-summarization folds the prior summary
// into the new one.
type Summary struct {
	Text       string `json:"text"`
	FirstTurn  int    `json:"first_turn"`
	LastTurn   int    `json:"last_turn"`
	TokenCount int    `json:"token_count"`
}

// EstimateTokens approximates the token count of text. Roughly one token per
// four bytes of English text; the deliberate overestimate for short strings
// keeps the budget conservative.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
