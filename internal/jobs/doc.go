// Package jobs defines the job model, its monotonic state machine, and the
// SQLite-backed history store.
//
// States move Created → Running → Completed/Failed, with Aborted reachable
// on client disconnect or shutdown sweep. Terminal states are immutable;
// transition attempts against them are deliberate no-ops so cleanup paths can
// race job completion safely.
package jobs
