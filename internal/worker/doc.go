// Package worker supervises external classification worker processes: it
// spawns them with process-group isolation, streams their combined output
// line by line, maps informal progress prose onto structured events, and
// extracts the structured terminal record that decides job success.
package worker
