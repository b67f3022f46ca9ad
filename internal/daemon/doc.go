// Package daemon wires batch intake, worker supervision, progress
// broadcast, and artifact downloads behind a single HTTP API, and keeps a
// lone daemon instance per machine via a lock file.
//
// The process endpoint is deliberately synchronous: a batch upload holds
// its connection open until the spawned worker reaches a terminal state,
// while observers follow the same job through the SSE progress stream.
package daemon
