package progress

// Step labels surfaced to observers. The analysis and report steps mirror the
// phases the worker reports on stdout.
const (
	StepConnecting = "Connecting"
	StepStarting   = "Starting"
	StepAnalyzing  = "Analyzing images"
	StepReport     = "Generating report"
	StepCompleted  = "Completed"
	StepError      = "Error"
)

// Event is a single status update broadcast to observers. Events are value
// types; once published they are never mutated.
type Event struct {
	CurrentStep    string `json:"current_step"`
	StepProgress   int    `json:"step_progress"`
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	Details        string `json:"details"`
}

// Terminal reports whether the event closes out a job's progress stream.
// A terminal event is always the last event published for its job.
func (e Event) Terminal() bool {
	return (e.CurrentStep == StepCompleted || e.CurrentStep == StepError) && e.StepProgress == 100
}
