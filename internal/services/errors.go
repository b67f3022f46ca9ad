package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSpawn marks failures to locate or launch the worker executable.
	ErrSpawn = errors.New("worker spawn error")
	// ErrNoResultRecord marks a worker run that ended without a parseable
	// terminal record.
	ErrNoResultRecord = errors.New("no result record")
	// ErrWorkerExit marks a worker that exited non-zero without a terminal record.
	ErrWorkerExit = errors.New("worker exit error")
	// ErrInvalidName marks a rejected artifact name (empty, traversal, wrong
	// extension).
	ErrInvalidName = errors.New("invalid artifact name")
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error to the response status the API server
// should return. Job-level worker failures are recovered failures, not server
// crashes, so they map to 500 with a structured body rather than a panic.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
