// Package agent contains the specialized task handlers and the Executor that
// wraps them with uniform non-functional behavior.
//
// Specialized agents (Policy, Transaction, Exchange, Shipping) are thin
// strategies over one external collaborator each; they implement domain
// logic only. Timeout, retry with exponential backoff, and the shared
// concurrency permit live exclusively in the Executor, so no agent ever
// re-implements them. Adding a capability means adding a new Agent variant,
// not a new code path through the coordinator.
package agent
