package api

// JobSummary describes a processing job in a transport-friendly format.
type JobSummary struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	TotalFiles     int            `json:"totalFiles"`
	ProcessedFiles int            `json:"processedFiles"`
	OutputArtifact string         `json:"outputArtifact,omitempty"`
	Categories     map[string]int `json:"categories,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

// ProcessResponse is the terminal reply to a successful batch upload: the
// request does not return until the job has finished. OutputPath carries the
// artifact's base name only; DownloadURL is derived from it. Failures use
// ErrorResponse with a non-2xx status instead.
type ProcessResponse struct {
	Status      string         `json:"status"`
	JobID       string         `json:"job_id"`
	OutputPath  string         `json:"output_path"`
	Categories  map[string]int `json:"categories,omitempty"`
	DownloadURL string         `json:"download_url"`
}

// JobCounts aggregates job history totals by outcome.
type JobCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Aborted   int `json:"aborted"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	JobDBPath    string    `json:"jobDbPath"`
	LockFilePath string    `json:"lockFilePath"`
	LiveWorkers  int       `json:"liveWorkers"`
	Subscribers  int       `json:"subscribers"`
	Jobs         JobCounts `json:"jobs"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobResponse wraps a single job lookup.
type JobResponse struct {
	Job JobSummary `json:"job"`
}

// ErrorResponse is the uniform error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
