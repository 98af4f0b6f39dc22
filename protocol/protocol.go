package protocol

import (
	"fmt"
)

// AgentName identifies one of the closed set of specialized agents.
type AgentName string

const (
	AgentPolicy      AgentName = "policy"
	AgentTransaction AgentName = "transaction"
	AgentExchange    AgentName = "exchange"
	AgentShipping    AgentName = "shipping"
)

// Valid reports whether the name belongs to the known agent set.
func (a AgentName) Valid() bool {
	switch a {
	case AgentPolicy, AgentTransaction, AgentExchange, AgentShipping:
		return true
	}
	return false
}

// Status is the outcome classification of a single agent call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Request is the envelope the coordinator sends to a specialized agent.
// It is immutable once issued; agents must not mutate Context or Metadata.
type Request struct {
	TargetAgent AgentName      `json:"target_agent"`
	Task        string         `json:"task"`
	Context     map[string]any `json:"context,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewRequest builds a request for the given agent and task.
func NewRequest(agent AgentName, task string, context map[string]any) Request {
	if context == nil {
		context = map[string]any{}
	}
	return Request{
		TargetAgent: agent,
		Task:        task,
		Context:     context,
		Metadata:    map[string]any{},
	}
}

// WithMetadata returns a copy of the request carrying the given metadata pair.
func (r Request) WithMetadata(key string, value any) Request {
	md := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	md[key] = value
	r.Metadata = md
	return r
}

// Validate checks the request for structural completeness.
func (r Request) Validate() error {
	if !r.TargetAgent.Valid() {
		return fmt.Errorf("%w: unknown target agent %q", ErrContractViolation, r.TargetAgent)
	}
	if r.Task == "" {
		return fmt.Errorf("%w: empty task", ErrContractViolation)
	}
	return nil
}

// Metadata carries per-call performance figures. It is populated on every
// response regardless of outcome.
type Metadata struct {
	LatencyMS  int64 `json:"latency_ms"`
	TokensUsed int   `json:"tokens_used"`
}

// ErrorInfo describes a failed agent call.
type ErrorInfo struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Response is produced exactly once per Request.
//
// Legal combinations, enforced by Validate:
//   - success: Result populated, Error absent
//   - error:   Error populated, Result absent
//   - timeout: both absent; Metadata.LatencyMS records the elapsed wait
type Response struct {
	SourceAgent AgentName      `json:"source_agent"`
	Status      Status         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       *ErrorInfo     `json:"error,omitempty"`
	Metadata    Metadata       `json:"metadata"`
}

// NewSuccess builds a success response carrying the task result.
func NewSuccess(agent AgentName, result map[string]any, md Metadata) Response {
	return Response{SourceAgent: agent, Status: StatusSuccess, Result: result, Metadata: md}
}

// NewError builds an error response with the given kind and message.
func NewError(agent AgentName, kind Kind, message string, md Metadata) Response {
	return Response{
		SourceAgent: agent,
		Status:      StatusError,
		Error:       &ErrorInfo{Kind: kind, Message: message},
		Metadata:    md,
	}
}

// NewTimeout builds a timeout response; latency records the elapsed wait.
func NewTimeout(agent AgentName, md Metadata) Response {
	return Response{SourceAgent: agent, Status: StatusTimeout, Metadata: md}
}

// Validate rejects responses that violate the envelope contract. The caller
// must treat a validation failure as if the agent call itself failed.
func (r Response) Validate() error {
	if !r.SourceAgent.Valid() {
		return fmt.Errorf("%w: unknown source agent %q", ErrContractViolation, r.SourceAgent)
	}
	switch r.Status {
	case StatusSuccess:
		if r.Result == nil {
			return fmt.Errorf("%w: success response without result", ErrContractViolation)
		}
		if r.Error != nil {
			return fmt.Errorf("%w: success response carrying error", ErrContractViolation)
		}
	case StatusError:
		if r.Error == nil {
			return fmt.Errorf("%w: error response without error info", ErrContractViolation)
		}
		if r.Result != nil {
			return fmt.Errorf("%w: error response carrying result", ErrContractViolation)
		}
	case StatusTimeout:
		if r.Result != nil || r.Error != nil {
			return fmt.Errorf("%w: timeout response must carry neither result nor error", ErrContractViolation)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrContractViolation, r.Status)
	}
	return nil
}

// OK reports whether the response is a validated success.
func (r Response) OK() bool { return r.Status == StatusSuccess && r.Validate() == nil }
