package worker

import (
	"encoding/json"
	"strings"

	"orthodeck/internal/services"
)

// Result is the worker's structured terminal record, emitted as the last
// parseable line of its output.
type Result struct {
	Status     string         `json:"status"`
	OutputPath string         `json:"output_path"`
	Categories map[string]int `json:"categories"`
	Error      string         `json:"error"`
}

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ExtractResult scans the worker's captured output backwards for the last
// structured terminal record. Exit status takes precedence: a worker that
// exited non-zero failed regardless of what it printed, and an exit code of
// zero without a record is equally a failure.
func ExtractResult(lines []string, exitErr error) (*Result, error) {
	if exitErr != nil {
		return nil, services.Wrap(services.ErrWorkerExit, "worker", "extract result",
			"worker process exited with an error", exitErr)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		res, ok := parseRecord(lines[i])
		if !ok {
			continue
		}
		if res.Status == ResultSuccess && strings.TrimSpace(res.OutputPath) == "" {
			return nil, services.Wrap(services.ErrNoResultRecord, "worker", "extract result",
				"success record is missing an output path", nil)
		}
		return res, nil
	}

	return nil, services.Wrap(services.ErrNoResultRecord, "worker", "extract result",
		"worker output contains no terminal result record", nil)
}

func parseRecord(line string) (*Result, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return nil, false
	}
	if res.Status != ResultSuccess && res.Status != ResultError {
		return nil, false
	}
	return &res, true
}
