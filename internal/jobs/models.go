package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/teris-io/shortid"
)

// Status represents the lifecycle of a job. Transitions are monotonic: a job
// never revisits a prior state, and terminal states are immutable.
type Status string

const (
	// StatusCreated is entered once input artifacts are persisted, before the
	// worker is spawned.
	StatusCreated Status = "created"
	// StatusRunning begins at successful worker spawn.
	StatusRunning Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusAborted is set on client disconnect or shutdown sweep; cleanup
	// runs without waiting for a terminal record.
	StatusAborted Status = "aborted"
)

// AbortReasonShutdown is the error message recorded when jobs are aborted by
// a daemon shutdown or crash sweep.
const AbortReasonShutdown = "Daemon stopped"

var allStatuses = []Status{
	StatusCreated,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusAborted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var validTransitions = map[Status]map[Status]struct{}{
	StatusCreated: {
		StatusRunning: {},
		StatusFailed:  {},
		StatusAborted: {},
	},
	StatusRunning: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusAborted:   {},
	},
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is allowed
// by the state machine.
func CanTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job is one batch-processing request from upload to terminal outcome.
type Job struct {
	ID             string
	Status         Status
	TotalFiles     int
	ProcessedFiles int
	OutputArtifact string
	CategoriesJSON string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewID generates an opaque, time-derived job identifier unique per request.
func NewID() string {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	return fmt.Sprintf("%s-%s", stamp, shortid.MustGenerate())
}
