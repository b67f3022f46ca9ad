package daemon

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"orthodeck/internal/api"
	"orthodeck/internal/jobs"
	"orthodeck/internal/logging"
	"orthodeck/internal/progress"
	"orthodeck/internal/services"
	"orthodeck/internal/worker"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// handleProcess accepts a multipart image batch and blocks until the
// spawned worker reaches a terminal state. The terminal progress event is
// always published before the response is written.
func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	paths, err := s.saveBatch(r)
	if err != nil {
		removeFiles(paths)
		s.writeServiceError(w, err)
		return
	}

	d := s.daemon
	jobID := jobs.NewID()
	if _, err := d.store.Create(r.Context(), jobID, len(paths)); err != nil {
		removeFiles(paths)
		s.writeServiceError(w, err)
		return
	}

	s.log().Info("batch accepted",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("files", len(paths)))
	if err := d.notifier.NotifyBatchReceived(r.Context(), jobID, len(paths)); err != nil {
		s.log().Warn("batch notification failed", logging.Error(err))
	}

	job := s.runJob(r.Context(), jobID, paths)
	if job.Status != jobs.StatusCompleted {
		message := job.ErrorMessage
		if message == "" {
			message = "job did not complete"
		}
		s.writeError(w, http.StatusInternalServerError, message)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProcessResponse{
		Status:      "success",
		JobID:       job.ID,
		OutputPath:  job.OutputArtifact,
		Categories:  api.DecodeCategories(job.CategoriesJSON),
		DownloadURL: "/api/download/" + job.OutputArtifact,
	})
}

// saveBatch streams multipart image parts into the inputs directory,
// enforcing per-file and per-batch limits before a job exists.
func (s *apiServer) saveBatch(r *http.Request) ([]string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "intake", "request is not multipart form data", err)
	}

	maxBytes := int64(s.daemon.cfg.Uploads.MaxFileMiB) * 1024 * 1024
	maxFiles := s.daemon.cfg.Uploads.MaxBatchFiles

	var paths []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return paths, services.Wrap(services.ErrValidation, "api", "intake", "malformed multipart payload", err)
		}
		if part.FormName() != "images" || part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			continue
		}
		if maxFiles > 0 && len(paths) >= maxFiles {
			return paths, services.Wrap(services.ErrValidation, "api", "intake",
				fmt.Sprintf("batch exceeds the %d file limit", maxFiles), nil)
		}
		if err := checkImagePart(part.FileName(), part.Header.Get("Content-Type")); err != nil {
			return paths, err
		}

		src := io.Reader(part)
		if maxBytes > 0 {
			src = io.LimitReader(part, maxBytes+1)
		}
		path, err := s.daemon.artifacts.SaveUpload(part.FileName(), src)
		if err != nil {
			return paths, services.Wrap(services.ErrValidation, "api", "intake", "failed to store upload", err)
		}
		paths = append(paths, path)

		if maxBytes > 0 {
			info, err := os.Stat(path)
			if err == nil && info.Size() > maxBytes {
				return paths, services.Wrap(services.ErrValidation, "api", "intake",
					fmt.Sprintf("%s exceeds the %d MiB file limit", part.FileName(), s.daemon.cfg.Uploads.MaxFileMiB), nil)
			}
		}
	}

	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "intake", "no images provided", nil)
	}
	return paths, nil
}

func checkImagePart(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExtensions[ext]; ok {
		return nil
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
		return nil
	}
	return services.Wrap(services.ErrValidation, "api", "intake",
		fmt.Sprintf("%s is not a supported image", filename), nil)
}

// runJob drives a created job to a terminal state and returns its final
// record. It never returns a job that is still active.
func (s *apiServer) runJob(reqCtx context.Context, jobID string, paths []string) *jobs.Job {
	d := s.daemon
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	manifestPath, err := d.artifacts.WriteManifest(jobID, paths)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}
	defer func() {
		if err := d.artifacts.RemoveManifest(manifestPath); err != nil {
			s.log().Warn("failed to remove manifest", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}()

	outputDir, err := d.artifacts.JobOutputDir(jobID)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}

	if err := d.store.MarkRunning(ctx, jobID); err != nil {
		return s.failJob(ctx, jobID, err)
	}
	d.hub.Publish(progress.Event{
		CurrentStep: progress.StepStarting,
		TotalFiles:  len(paths),
		Details:     "Worker starting",
	})

	var mu sync.Mutex
	var lines []string
	classifier := worker.NewClassifier(len(paths))
	onLine := func(line string) {
		s.log().Debug("worker output", logging.String(logging.FieldJobID, jobID), logging.String("line", line))
		mu.Lock()
		lines = append(lines, line)
		event, ok := classifier.Classify(line)
		processed := classifier.Processed()
		mu.Unlock()
		if !ok {
			return
		}
		d.hub.Publish(event)
		if err := d.store.UpdateProgress(ctx, jobID, processed); err != nil {
			s.log().Warn("failed to persist progress", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}

	handle, err := d.supervisor.Start(ctx, jobID, manifestPath, outputDir, onLine)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}
	defer d.supervisor.Cleanup(jobID)

	// A vanished uploader means nobody is waiting for the report.
	var clientGone atomic.Bool
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-reqCtx.Done():
			clientGone.Store(true)
			s.log().Info("client disconnected, terminating worker", logging.String(logging.FieldJobID, jobID))
			d.supervisor.Cleanup(jobID)
		case <-waitDone:
		}
	}()

	waitErr := handle.Wait()
	close(waitDone)

	if clientGone.Load() {
		return s.abortJob(ctx, jobID, "Client disconnected")
	}
	if ctx.Err() != nil {
		// Daemon shutdown killed the worker; record the abort against an
		// uncancelled context so the store write still lands.
		return s.abortJob(context.WithoutCancel(ctx), jobID, jobs.AbortReasonShutdown)
	}

	mu.Lock()
	captured := make([]string, len(lines))
	copy(captured, lines)
	mu.Unlock()

	result, err := worker.ExtractResult(captured, waitErr)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}
	if result.Status == worker.ResultError {
		return s.failJob(ctx, jobID, services.Wrap(services.ErrWorkerExit, "worker", "process batch", result.Error, nil))
	}

	artifact, err := d.artifacts.CollectOutput(jobID, result.OutputPath)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}
	categoriesJSON := api.EncodeCategories(result.Categories)
	if err := d.store.MarkCompleted(ctx, jobID, artifact, categoriesJSON); err != nil {
		return s.failJob(ctx, jobID, err)
	}

	d.hub.Publish(progress.Event{
		CurrentStep:    progress.StepCompleted,
		StepProgress:   100,
		TotalFiles:     len(paths),
		ProcessedFiles: len(paths),
		Details:        "Report ready: " + artifact,
	})
	if err := d.notifier.NotifyJobCompleted(ctx, jobID, artifact); err != nil {
		s.log().Warn("completion notification failed", logging.Error(err))
	}
	s.log().Info("job completed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("artifact", artifact))

	return s.finalJob(ctx, jobID)
}

// failJob marks the job failed, publishes the terminal error event, and
// returns the final record.
func (s *apiServer) failJob(ctx context.Context, jobID string, cause error) *jobs.Job {
	d := s.daemon
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	if err := d.store.MarkFailed(ctx, jobID, message); err != nil {
		s.log().Error("failed to record job failure", logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
	d.hub.Publish(progress.Event{
		CurrentStep:  progress.StepError,
		StepProgress: 100,
		Details:      message,
	})
	if err := d.notifier.NotifyJobFailed(ctx, jobID, cause); err != nil {
		s.log().Warn("failure notification failed", logging.Error(err))
	}
	s.log().Error("job failed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("reason", message))
	return s.finalJob(ctx, jobID)
}

// abortJob marks the job aborted without a failure notification; the
// uploader is gone, so only stream observers need the terminal event.
func (s *apiServer) abortJob(ctx context.Context, jobID, reason string) *jobs.Job {
	d := s.daemon
	if err := d.store.MarkAborted(ctx, jobID, reason); err != nil {
		s.log().Error("failed to record job abort", logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
	d.hub.Publish(progress.Event{
		CurrentStep:  progress.StepError,
		StepProgress: 100,
		Details:      reason,
	})
	s.log().Warn("job aborted",
		logging.String(logging.FieldJobID, jobID),
		logging.String("reason", reason))
	return s.finalJob(ctx, jobID)
}

func (s *apiServer) finalJob(ctx context.Context, jobID string) *jobs.Job {
	job, err := s.daemon.store.GetByID(ctx, jobID)
	if err != nil || job == nil {
		return &jobs.Job{ID: jobID, Status: jobs.StatusFailed, ErrorMessage: "job record unavailable"}
	}
	return job
}

func removeFiles(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}
