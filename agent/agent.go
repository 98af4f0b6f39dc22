package agent

import (
	"context"

	"github.com/barefootzenith/supportmesh/protocol"
)

// Outcome is the raw product of an agent's domain logic before the Executor
// wraps it in a protocol envelope.
type Outcome struct {
	// Result is the task payload for a success response.
	Result map[string]any
	// TokensUsed records model/API token cost incurred by the call, if any.
	TokensUsed int
}

// Agent is the single capability contract all specialized agents implement.
// Handle runs domain logic and returns either an Outcome or a classified
// error (protocol.Transient / protocol.Permanent); it must respect ctx
// cancellation on every collaborator call and must not retry internally.
type Agent interface {
	Name() protocol.AgentName
	Handle(ctx context.Context, req protocol.Request) (Outcome, error)
}
