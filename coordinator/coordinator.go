package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/barefootzenith/supportmesh/agent"
	"github.com/barefootzenith/supportmesh/logging"
	"github.com/barefootzenith/supportmesh/model"
	"github.com/barefootzenith/supportmesh/protocol"
)

// PendingAction is a mutating operation parked on the session awaiting an
// explicit user confirmation.
type PendingAction struct {
	Kind      Intent    `json:"kind"` // IntentRefund or IntentExchange
	OrderID   string    `json:"order_id,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnInput is one user turn plus the session state the coordinator needs.
type TurnInput struct {
	SessionID string
	Message   string
	// History is the rendered conversation context (summary plus retained
	// turns) used for classification and assembly prompts.
	History string
	// Pending is the action awaiting confirmation from an earlier turn,
	// nil if none.
	Pending *PendingAction
}

// TurnOutput is the complete product of one pipeline run.
type TurnOutput struct {
	State      TurnState
	Intent     Intent
	Confidence float64
	OrderID    string
	Reply      ResponseTemplate
	// Pending carries the action awaiting confirmation after this turn;
	// the caller stores it on the session. Nil clears any prior action.
	Pending        *PendingAction
	AgentResponses map[protocol.AgentName]protocol.Response
	TokensUsed     int
}

// Coordinator runs the turn pipeline over a fixed agent registry.
type Coordinator struct {
	model    model.Model
	executor *agent.Executor
	agents   map[protocol.AgentName]agent.Agent
	routes   map[Intent][]protocol.AgentName
	logger   logging.Logger
}

// defaultRoutes maps each intent to the agents consulted for it. The
// general intent dispatches nothing; those turns are answered from
// conversation context alone.
func defaultRoutes() map[Intent][]protocol.AgentName {
	return map[Intent][]protocol.AgentName{
		IntentRefund:   {protocol.AgentPolicy, protocol.AgentTransaction},
		IntentExchange: {protocol.AgentPolicy, protocol.AgentExchange},
		IntentShipping: {protocol.AgentShipping},
		IntentPolicy:   {protocol.AgentPolicy},
		IntentGeneral:  {},
	}
}

// New constructs a Coordinator over the given model, executor and agents.
func New(m model.Model, exec *agent.Executor, agents []agent.Agent, logger logging.Logger) (*Coordinator, error) {
	if m == nil {
		return nil, protocol.Configurationf("coordinator requires a model")
	}
	if exec == nil {
		return nil, protocol.Configurationf("coordinator requires an executor")
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	registry := make(map[protocol.AgentName]agent.Agent, len(agents))
	for _, ag := range agents {
		if ag == nil {
			continue
		}
		if _, dup := registry[ag.Name()]; dup {
			return nil, protocol.Configurationf("duplicate agent %q", ag.Name())
		}
		registry[ag.Name()] = ag
	}
	routes := defaultRoutes()
	for intent, names := range routes {
		for _, name := range names {
			if _, ok := registry[name]; !ok {
				return nil, protocol.Configurationf("intent %s routes to unregistered agent %q", intent, name)
			}
		}
	}
	return &Coordinator{
		model:    m,
		executor: exec,
		agents:   registry,
		routes:   routes,
		logger:   logger,
	}, nil
}

// HandleTurn runs one user message through the pipeline. It returns an error
// only for empty input, context cancellation or configuration faults; all
// collaborator failures degrade into the assembled reply.
func (c *Coordinator) HandleTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if in.Message == "" {
		return TurnOutput{State: StateErrored}, fmt.Errorf("%w: empty message", protocol.ErrContractViolation)
	}
	t := &turn{sessionID: in.SessionID, state: StateReceived}

	// Confirmation gate: a parked mutating action resolves before any
	// classification happens.
	if in.Pending != nil {
		if IsConfirmation(in.Message) {
			out := c.executePending(ctx, t, in)
			return out, nil
		}
		if IsDeclination(in.Message) {
			c.logger.Info("pending action declined",
				"session_id", in.SessionID, "kind", string(in.Pending.Kind))
			c.advance(t, StateDone)
			return TurnOutput{
				State: StateDone,
				Reply: ResponseTemplate{
					ResponseType: ResponseGeneralInfo,
					Message:      "No problem, I won't proceed. Is there anything else I can help with?",
				},
			}, nil
		}
		// Neither confirmed nor declined: keep the action parked and
		// handle the message normally.
	}

	tokens := 0
	cls, used := c.classify(ctx, in.Message, in.History)
	tokens += used
	c.advance(t, StateClassified)
	c.logger.Info("intent classified",
		"session_id", in.SessionID, "intent", string(cls.Intent), "confidence", cls.Confidence)

	orderID := ExtractOrderID(in.Message)
	sku := ExtractSKU(in.Message)

	out := TurnOutput{
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		OrderID:    orderID,
		Pending:    in.Pending,
	}

	route := c.routes[cls.Intent]
	if len(route) > 0 {
		reqs := c.buildRequests(cls.Intent, in.Message, orderID, sku)
		out.AgentResponses = c.dispatch(ctx, reqs)
		c.advance(t, StateDispatched)
		c.validate(out.AgentResponses)
		c.advance(t, StateValidated)
		if pending := c.planPending(cls.Intent, orderID, out.AgentResponses); pending != nil {
			out.Pending = pending
		}
		for _, resp := range out.AgentResponses {
			tokens += resp.Metadata.TokensUsed
		}
	}

	reply, used := c.assemble(ctx, cls.Intent, in, out.AgentResponses)
	tokens += used
	c.advance(t, StateAssembled)

	c.advance(t, StateDone)
	out.State = StateDone
	out.Reply = reply
	out.TokensUsed = tokens
	return out, nil
}

// executePending runs the parked mutating call after an explicit
// confirmation. The pending action is always cleared, whatever the outcome.
func (c *Coordinator) executePending(ctx context.Context, t *turn, in TurnInput) TurnOutput {
	p := in.Pending
	c.logger.Info("pending action confirmed",
		"session_id", in.SessionID, "kind", string(p.Kind), "order_id", p.OrderID)

	var req protocol.Request
	var name protocol.AgentName
	switch p.Kind {
	case IntentRefund:
		name = protocol.AgentTransaction
		req = protocol.NewRequest(name, "process_refund", map[string]any{"order_id": p.OrderID})
	case IntentExchange:
		name = protocol.AgentExchange
		req = protocol.NewRequest(name, "reserve_replacement", map[string]any{"sku": p.SKU})
	default:
		c.advance(t, StateDone)
		return TurnOutput{
			State: StateDone,
			Reply: errorTemplate("I lost track of what you were confirming.", protocol.Response{}),
		}
	}
	req = req.WithMetadata("session_id", in.SessionID)

	resp := c.executor.Execute(ctx, c.agents[name], req)
	c.advance(t, StateDone)

	out := TurnOutput{
		State:          StateDone,
		Intent:         p.Kind,
		OrderID:        p.OrderID,
		AgentResponses: map[protocol.AgentName]protocol.Response{name: resp},
		TokensUsed:     resp.Metadata.TokensUsed,
	}
	out.Reply = renderPendingResult(p, resp)
	return out
}

// renderPendingResult renders the reply for an executed pending action.
func renderPendingResult(p *PendingAction, resp protocol.Response) ResponseTemplate {
	if !resp.OK() {
		switch p.Kind {
		case IntentRefund:
			return errorTemplate("The refund could not be processed.", resp)
		default:
			return errorTemplate("The reservation could not be completed.", resp)
		}
	}
	switch p.Kind {
	case IntentRefund:
		if elig, ok := resp.Result["eligibility"].(agent.Eligibility); ok && !elig.Eligible {
			return ResponseTemplate{
				ResponseType: ResponseRefundNotEligible,
				Message:      fmt.Sprintf("Order %s is no longer eligible for a refund (%s).", p.OrderID, elig.Reason),
			}
		}
		txn, _ := resp.Result["transaction_id"].(string)
		amount, _ := resp.Result["amount"].(float64)
		return ResponseTemplate{
			ResponseType: ResponseRefundProcessed,
			Message:      fmt.Sprintf("Your refund of $%.2f for order %s has been processed.", amount, p.OrderID),
			KeyDetails:   []string{"Transaction ID: " + txn},
		}
	default:
		if reserved, _ := resp.Result["reserved"].(bool); !reserved {
			return ResponseTemplate{
				ResponseType: ResponseError,
				Message:      fmt.Sprintf("The replacement %s sold out before I could reserve it.", p.SKU),
				KeyDetails:   []string{"Reason: out_of_stock"},
			}
		}
		return ResponseTemplate{
			ResponseType: ResponseExchangeReserved,
			Message:      fmt.Sprintf("Done, I've reserved a replacement %s for your exchange.", p.SKU),
		}
	}
}

// buildRequests prepares the per-agent requests for an intent. Missing
// identifiers are passed through empty; the agents report them as structured
// results so the reply can prompt the user.
func (c *Coordinator) buildRequests(intent Intent, message, orderID, sku string) []protocol.Request {
	var reqs []protocol.Request
	for _, name := range c.routes[intent] {
		switch name {
		case protocol.AgentPolicy:
			reqs = append(reqs, protocol.NewRequest(name, "search_policy", map[string]any{"query": message}))
		case protocol.AgentTransaction:
			reqs = append(reqs, protocol.NewRequest(name, "check_eligibility", map[string]any{"order_id": orderID}))
		case protocol.AgentExchange:
			reqs = append(reqs, protocol.NewRequest(name, "check_stock", map[string]any{"sku": sku}))
		case protocol.AgentShipping:
			reqs = append(reqs, protocol.NewRequest(name, "get_status", map[string]any{"order_id": orderID}))
		}
	}
	return reqs
}

// dispatch fans the requests out in parallel and collects one response per
// agent. Individual failures surface as error envelopes, never as missing
// entries.
func (c *Coordinator) dispatch(ctx context.Context, reqs []protocol.Request) map[protocol.AgentName]protocol.Response {
	results := make(map[protocol.AgentName]protocol.Response, len(reqs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req protocol.Request) {
			defer wg.Done()
			resp := c.executor.Execute(ctx, c.agents[req.TargetAgent], req)
			mu.Lock()
			results[req.TargetAgent] = resp
			mu.Unlock()
		}(req)
	}
	wg.Wait()
	return results
}

// validate enforces the response contract on every collected envelope. A
// malformed envelope is replaced by an invalid_output error so downstream
// stages see only legal responses.
func (c *Coordinator) validate(results map[protocol.AgentName]protocol.Response) {
	for name, resp := range results {
		if err := resp.Validate(); err != nil {
			c.logger.Warn("agent response failed validation",
				"agent", string(name), "error", err.Error())
			results[name] = protocol.NewError(name, protocol.KindInvalidOutput, err.Error(), resp.Metadata)
		}
	}
}

// planPending derives the action to park for confirmation from this turn's
// results, or nil when nothing is confirmable.
func (c *Coordinator) planPending(intent Intent, orderID string, results map[protocol.AgentName]protocol.Response) *PendingAction {
	switch intent {
	case IntentRefund:
		resp, ok := results[protocol.AgentTransaction]
		if !ok || !resp.OK() {
			return nil
		}
		elig, ok := resp.Result["eligibility"].(agent.Eligibility)
		if !ok || !elig.Eligible {
			return nil
		}
		amount, _ := resp.Result["amount"].(float64)
		id, _ := resp.Result["order_id"].(string)
		if id == "" {
			id = orderID
		}
		return &PendingAction{Kind: IntentRefund, OrderID: id, Amount: amount, CreatedAt: time.Now().UTC()}
	case IntentExchange:
		resp, ok := results[protocol.AgentExchange]
		if !ok || !resp.OK() {
			return nil
		}
		inStock, _ := resp.Result["in_stock"].(bool)
		if !inStock {
			return nil
		}
		sku, _ := resp.Result["sku"].(string)
		return &PendingAction{Kind: IntentExchange, OrderID: orderID, SKU: sku, CreatedAt: time.Now().UTC()}
	default:
		return nil
	}
}

const assembleInstructions = `You are a friendly customer support assistant for an online retailer.
Write the final reply to the customer using ONLY the facts in the agent results.
Be concise and empathetic. Never invent order details, amounts or policies.
If a needed detail is missing, ask the customer for it.
If an agent call failed, acknowledge the problem and suggest trying again.`

// assemble produces the final reply with one schema-constrained model call,
// falling back to a deterministic template on any model or parse failure.
func (c *Coordinator) assemble(ctx context.Context, intent Intent, in TurnInput, results map[protocol.AgentName]protocol.Response) (ResponseTemplate, int) {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		resultsJSON = []byte("{}")
	}
	prompt := fmt.Sprintf(
		"Conversation so far:\n%s\n\nCustomer message:\n%s\n\nDetected intent: %s\n\nAgent results (JSON):\n%s",
		in.History, in.Message, intent, resultsJSON)

	res, err := c.model.Generate(ctx, model.Request{
		Instructions: assembleInstructions,
		Prompt:       prompt,
		Schema:       responseSchema,
	})
	if err != nil {
		c.logger.Warn("response assembly failed, using fallback template",
			"session_id", in.SessionID, "error", err.Error())
		return fallbackTemplate(intent, results), 0
	}
	tpl, err := model.ParseStructured[ResponseTemplate](res.Text)
	if err != nil || tpl.Message == "" {
		c.logger.Warn("assembled response unparseable, using fallback template",
			"session_id", in.SessionID)
		return fallbackTemplate(intent, results), res.Usage.TotalTokens
	}
	return tpl, res.Usage.TotalTokens
}
