// Package services defines shared error-classification utilities consumed by
// the API handlers and the worker supervision pipeline.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that keep failure context
//     (component, operation, message) attached to sentinel errors.
//   - The HTTPStatus mapping that turns a classified failure into the response
//     code the API boundary should emit.
//
// Use these helpers when wiring new handlers so operational behaviour (error
// handling, observability) stays uniform across the service.
package services
