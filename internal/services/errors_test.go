package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"orthodeck/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSpawn, "supervisor", "start", "worker missing", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSpawn) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"supervisor", "start", "worker missing"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	invalidName := services.Wrap(services.ErrInvalidName, "download", "validate", "traversal", nil)
	if status := services.HTTPStatus(invalidName); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid name, got %d", status)
	}

	notFound := services.Wrap(services.ErrNotFound, "download", "resolve", "missing artifact", nil)
	if status := services.HTTPStatus(notFound); status != http.StatusNotFound {
		t.Fatalf("expected 404 for not found, got %d", status)
	}

	workerExit := services.Wrap(services.ErrWorkerExit, "supervisor", "wait", "exit status 1", nil)
	if status := services.HTTPStatus(workerExit); status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for worker exit, got %d", status)
	}

	if status := services.HTTPStatus(nil); status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for nil error, got %d", status)
	}
}
