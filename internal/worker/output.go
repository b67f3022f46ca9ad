package worker

import (
	"regexp"
	"strconv"
	"strings"

	"orthodeck/internal/progress"
)

// Worker scripts narrate progress in freeform prose. These markers are the
// contract: matching is case-insensitive and tolerant of surrounding chatter,
// but the phrases themselves are fixed.
var (
	imageProgressRE = regexp.MustCompile(`(?i)image\s+(\d+)\s+of\s+(\d+)`)
	classifiedRE    = regexp.MustCompile(`(?i)classified as\s+(.+)`)
	reportRE        = regexp.MustCompile(`(?i)generating (the )?powerpoint presentation`)
)

// The report stage has no per-item progress, so it reports a fixed
// percentage until the terminal record lands.
const reportProgress = 90

// Classifier turns a worker's informal output lines into progress events.
// It tracks how many images have been processed so callers can persist
// per-job counters.
type Classifier struct {
	totalFiles int
	processed  int
}

func NewClassifier(totalFiles int) *Classifier {
	return &Classifier{totalFiles: totalFiles}
}

// Processed reports how many images the worker has announced so far.
func (c *Classifier) Processed() int {
	return c.processed
}

// Classify maps one output line to a progress event. Lines that match no
// marker return ok=false and should be ignored by broadcast (but may still
// be logged and retained for terminal-record extraction).
func (c *Classifier) Classify(line string) (progress.Event, bool) {
	if m := imageProgressRE.FindStringSubmatch(line); m != nil {
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if total <= 0 {
			total = c.totalFiles
		}
		if current > total {
			current = total
		}
		if current > c.processed {
			c.processed = current
		}
		pct := 0
		if total > 0 {
			pct = current * 100 / total
		}
		return progress.Event{
			CurrentStep:    progress.StepAnalyzing,
			StepProgress:   pct,
			TotalFiles:     total,
			ProcessedFiles: c.processed,
			Details:        strings.TrimSpace(line),
		}, true
	}

	if m := classifiedRE.FindStringSubmatch(line); m != nil {
		pct := 0
		if c.totalFiles > 0 {
			pct = c.processed * 100 / c.totalFiles
		}
		return progress.Event{
			CurrentStep:    progress.StepAnalyzing,
			StepProgress:   pct,
			TotalFiles:     c.totalFiles,
			ProcessedFiles: c.processed,
			Details:        "Classified as " + strings.TrimSpace(m[1]),
		}, true
	}

	if reportRE.MatchString(line) {
		c.processed = c.totalFiles
		return progress.Event{
			CurrentStep:    progress.StepReport,
			StepProgress:   reportProgress,
			TotalFiles:     c.totalFiles,
			ProcessedFiles: c.processed,
			Details:        "Generating PowerPoint presentation",
		}, true
	}

	return progress.Event{}, false
}
