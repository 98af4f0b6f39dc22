// Package coordinator implements the orchestration pipeline that turns a
// user message into a reply: classify the intent, route to the specialized
// agents, dispatch the calls in parallel, validate the returned envelopes
// and assemble the final response.
//
// The pipeline degrades gracefully at every stage. A failed classification
// demotes the turn to general handling, failed agent calls are reported in
// the assembled reply rather than aborting the turn, and a failed assembly
// model call falls back to a deterministic template rendered from the
// structured agent results. Only configuration errors are fatal.
//
// Mutating operations (refund processing, stock reservation) never run in
// the turn that established eligibility. They are parked on the session as
// a PendingAction and executed only when a later turn is an explicit
// confirmation.
package coordinator
