// Command orthodeck is the CLI companion to orthodeckd. It can run the
// daemon in the foreground, submit image batches, and inspect job history
// over the daemon's HTTP API.
package main
