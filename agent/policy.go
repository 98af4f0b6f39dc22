package agent

import (
	"context"
	"fmt"

	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/protocol"
	"github.com/barefootzenith/supportmesh/rag"
)

// Policy answers policy questions from the retrieval index. It performs no
// generation of its own; the coordinator folds the retrieved evidence into
// the assembled reply.
type Policy struct {
	retriever *rag.Retriever
	logger    logging.Logger
}

// NewPolicy constructs the policy agent over the given retriever.
func NewPolicy(retriever *rag.Retriever, logger logging.Logger) *Policy {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Policy{retriever: retriever, logger: logger}
}

func (p *Policy) Name() protocol.AgentName { return protocol.AgentPolicy }

func (p *Policy) Handle(ctx context.Context, req protocol.Request) (Outcome, error) {
	if req.Task != "search_policy" {
		return Outcome{}, protocol.Permanent(protocol.KindValidation,
			fmt.Errorf("unknown policy task %q", req.Task))
	}
	query, _ := req.Context["query"].(string)
	if query == "" {
		return Outcome{}, protocol.Permanent(protocol.KindValidation,
			fmt.Errorf("empty policy query"))
	}
	text, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		// Retrieval backends fail transiently (embedding API, vector store).
		return Outcome{}, protocol.Transient(protocol.KindUnavailable, err)
	}
	p.logger.Debug("policy retrieved", "query", query, "chars", len(text))
	return Outcome{Result: map[string]any{
		"query":       query,
		"policy_text": text,
		"source":      "policy_index",
	}}, nil
}
