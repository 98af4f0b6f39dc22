package coordinator

import "fmt"

// TurnState tracks a turn through the pipeline. States advance strictly
// forward; Errored is absorbing.
type TurnState string

const (
	StateReceived   TurnState = "received"
	StateClassified TurnState = "classified"
	StateDispatched TurnState = "dispatched"
	StateValidated  TurnState = "validated"
	StateAssembled  TurnState = "assembled"
	StateDone       TurnState = "done"
	StateErrored    TurnState = "errored"
)

var turnTransitions = map[TurnState][]TurnState{
	StateReceived:   {StateClassified, StateDone, StateErrored},
	StateClassified: {StateDispatched, StateAssembled, StateErrored},
	StateDispatched: {StateValidated, StateErrored},
	StateValidated:  {StateAssembled, StateErrored},
	StateAssembled:  {StateDone, StateErrored},
	StateDone:       {},
	StateErrored:    {},
}

// CanTransition reports whether from may advance to to.
func CanTransition(from, to TurnState) bool {
	for _, next := range turnTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// turn carries the mutable state of one pipeline run.
type turn struct {
	sessionID string
	state     TurnState
}

// advance moves the turn to the next state, logging the transition. An
// illegal transition is a pipeline bug and panics.
func (c *Coordinator) advance(t *turn, next TurnState) {
	if !CanTransition(t.state, next) {
		panic(fmt.Sprintf("illegal turn transition %s -> %s", t.state, next))
	}
	c.logger.Debug("turn state transition",
		"session_id", t.sessionID, "from", string(t.state), "to", string(next))
	t.state = next
}
