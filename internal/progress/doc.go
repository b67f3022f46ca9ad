// Package progress defines the progress event value type and the process-wide
// broadcast hub that fans events out to connected observers.
//
// The hub is a best-effort, at-most-once-per-subscriber broadcast: each
// subscriber owns a bounded inbound channel, publishes never block, and a
// subscriber that falls behind simply misses events. Subscriber registration,
// removal, and publishing may all run concurrently.
package progress
