package api

import (
	"encoding/json"
	"strings"

	"orthodeck/internal/jobs"
)

const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromJob translates a stored job into its API representation.
func FromJob(job *jobs.Job) JobSummary {
	if job == nil {
		return JobSummary{}
	}
	summary := JobSummary{
		ID:             job.ID,
		Status:         string(job.Status),
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		OutputArtifact: job.OutputArtifact,
		ErrorMessage:   job.ErrorMessage,
		Categories:     DecodeCategories(job.CategoriesJSON),
	}
	if !job.CreatedAt.IsZero() {
		summary.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		summary.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return summary
}

// FromJobs translates a job slice, preserving order.
func FromJobs(list []*jobs.Job) []JobSummary {
	out := make([]JobSummary, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromHealth translates store aggregates into the API shape.
func FromHealth(h jobs.HealthSummary) JobCounts {
	return JobCounts{
		Total:     h.Total,
		Active:    h.Active,
		Completed: h.Completed,
		Failed:    h.Failed,
		Aborted:   h.Aborted,
	}
}

// DecodeCategories parses the stored category-count JSON, returning nil for
// empty or malformed input.
func DecodeCategories(raw string) map[string]int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var categories map[string]int
	if err := json.Unmarshal([]byte(raw), &categories); err != nil {
		return nil
	}
	if len(categories) == 0 {
		return nil
	}
	return categories
}

// EncodeCategories renders category counts for storage. Nil input encodes as
// the empty string.
func EncodeCategories(categories map[string]int) string {
	if len(categories) == 0 {
		return ""
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return ""
	}
	return string(data)
}
