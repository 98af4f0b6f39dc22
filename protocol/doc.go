// Package protocol defines the request/response envelope exchanged between
// the coordinator and specialized agents, along with the shared status and
// error-kind vocabulary. It is a pure data contract: the envelope carries no
// behavior beyond construction helpers and validation of the legal
// status/field combinations.
package protocol
