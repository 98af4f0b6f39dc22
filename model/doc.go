// Package model defines the provider-agnostic language-model contract the
// engine depends on.
//
// Core goals:
//   - Treat generation as a black-box, fallible call with latency and token cost
//   - Keep request/response shapes minimal and transport independent
//   - Handle schema-constrained outputs as an explicit parse step
//     (ParseStructured) instead of assuming provider-side enforcement
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, coordinator, history) remain decoupled
// from vendor SDKs.
package model
