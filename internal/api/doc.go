// Package api defines the wire types shared between the daemon's HTTP
// surface and its clients, plus a small HTTP client used by the CLI.
package api
