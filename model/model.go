package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Request captures the normalized model input.
//
// Schema, when non-nil, is a JSON Schema object the caller expects the
// completion to conform to. Providers that support constrained decoding pass
// it through; others ignore it. Either way the caller must run the returned
// text through ParseStructured; conformance is never assumed.
type Request struct {
	Instructions string         `json:"instructions,omitempty"`
	Prompt       string         `json:"prompt"`
	Schema       map[string]any `json:"schema,omitempty"`
	MaxTokens    int64          `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the outcome of a successful generation.
type Result struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (Result, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrorKind classifies model call failures.
type ErrorKind string

const (
	ErrTimeout       ErrorKind = "timeout"
	ErrRateLimited   ErrorKind = "rate_limited"
	ErrUnavailable   ErrorKind = "unavailable"
	ErrInvalidOutput ErrorKind = "invalid_output"
)

// Error is the uniform failure type returned by providers.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("model %s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry.
func (e *Error) Transient() bool { return e.Kind != ErrInvalidOutput }

// NewError wraps err with a failure kind.
func NewError(kind ErrorKind, err error) *Error { return &Error{Kind: kind, Err: err} }

// ParseStructured validates raw model output against the expected shape T.
// It tolerates completions wrapped in markdown fences or surrounded by prose
// by extracting the outermost JSON object first. A mismatch is reported as an
// invalid_output Error so callers can fall back explicitly.
func ParseStructured[T any](raw string) (T, error) {
	var out T
	text := extractJSON(raw)
	if text == "" {
		return out, NewError(ErrInvalidOutput, fmt.Errorf("no JSON object in model output"))
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, NewError(ErrInvalidOutput, fmt.Errorf("decode structured output: %w", err))
	}
	return out, nil
}

// extractJSON returns the outermost {...} object in text, or "" if none.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// MockModel is a lightweight in-memory Model useful for tests.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	err       error
	calls     int
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for prompts containing substr.
func (m *MockModel) AddResponse(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substr] = response
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Generate invocations observed.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model with substring-matched canned responses.
func (m *MockModel) Generate(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return Result{}, NewError(ErrTimeout, err)
	}
	if m.err != nil {
		return Result{}, m.err
	}
	for substr, resp := range m.responses {
		if strings.Contains(req.Prompt, substr) {
			return Result{Text: resp, Usage: TokenUsage{TotalTokens: len(resp) / 4}}, nil
		}
	}
	text := "Mock response to: " + req.Prompt
	return Result{Text: text, Usage: TokenUsage{TotalTokens: len(text) / 4}}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
