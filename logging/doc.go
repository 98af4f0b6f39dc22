// Package logging provides a minimal logging interface and adapters for
// supportmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the coordinator, agents and history manager use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - EngineLogger with contextual helpers (session, component) and domain
//     helpers for agent calls, model calls and history compaction
//
// Components receive a Logger at construction; there is no process-wide
// logger singleton.
package logging
