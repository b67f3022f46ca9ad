// Package notifications delivers job lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Completion and error notifications can be toggled
// independently so a deployment can alert on failures only.
//
// Extend this package if you need alternative transports; the daemon
// depends only on the simple Service interface.
package notifications
