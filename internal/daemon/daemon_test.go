package daemon_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"orthodeck/internal/api"
	"orthodeck/internal/config"
	"orthodeck/internal/daemon"
	"orthodeck/internal/jobs"
	"orthodeck/internal/logging"
	"orthodeck/internal/progress"
	"orthodeck/internal/testsupport"
)

const successScript = `#!/bin/sh
manifest="$1"
out="$2"
echo "Reading image paths from: $manifest"
echo "Processing image 1 of 3: a.jpg"
echo "a.jpg classified as Front view with teeth (front_with_teeth)"
echo "Processing image 2 of 3: b.jpg"
echo "Processing image 3 of 3: c.jpg"
echo "Generating PowerPoint presentation..."
printf 'report-bytes' > "$out/treatment_report.pptx"
echo "Result: {'status': 'success'}"
echo "{\"status\": \"success\", \"output_path\": \"$out/treatment_report.pptx\", \"categories\": {\"front_with_teeth\": 1, \"unknown\": 2}}"
`

const crashScript = `#!/bin/sh
echo "Processing image 1 of 3: a.jpg"
echo "model load failed" 1>&2
exit 1
`

const errorRecordScript = `#!/bin/sh
echo "Processing image 1 of 3: a.jpg"
echo "{\"status\": \"error\", \"error\": \"unreadable image\"}"
`

func startTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *config.Config, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return d, cfg, "http://" + d.Addr()
}

func batchBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte("not-a-real-image")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func uploadBatch(t *testing.T, base string, names ...string) (*http.Response, []byte) {
	t.Helper()

	body, contentType := batchBody(t, names...)
	req, err := http.NewRequest(http.MethodPost, base+"/api/process", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post batch: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func decodeJSON[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return payload
}

func TestProcessEndToEnd(t *testing.T) {
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(successScript))

	resp, raw := uploadBatch(t, base, "a.jpg", "b.jpg", "c.jpg")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, raw)
	}
	payload := decodeJSON[api.ProcessResponse](t, raw)
	if payload.Status != "success" {
		t.Fatalf("unexpected status %q: %+v", payload.Status, payload)
	}
	if !strings.HasPrefix(payload.OutputPath, payload.JobID) ||
		!strings.HasSuffix(payload.OutputPath, "-treatment_report.pptx") {
		t.Fatalf("unexpected artifact name %q", payload.OutputPath)
	}
	if payload.DownloadURL != "/api/download/"+payload.OutputPath {
		t.Fatalf("unexpected download url %q", payload.DownloadURL)
	}
	if payload.Categories["front_with_teeth"] != 1 || payload.Categories["unknown"] != 2 {
		t.Fatalf("unexpected categories %v", payload.Categories)
	}

	download, err := http.Get(base + "/api/download/" + payload.OutputPath)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer download.Body.Close()
	if download.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", download.StatusCode)
	}
	data, err := io.ReadAll(download.Body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "report-bytes" {
		t.Fatalf("unexpected download body %q", data)
	}

	jobResp, err := http.Get(base + "/api/jobs/" + payload.JobID)
	if err != nil {
		t.Fatalf("fetch job: %v", err)
	}
	defer jobResp.Body.Close()
	var record api.JobResponse
	if err := json.NewDecoder(jobResp.Body).Decode(&record); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if record.Job.Status != "completed" || record.Job.ProcessedFiles != 3 {
		t.Fatalf("unexpected job record %+v", record.Job)
	}
}

func TestProcessWorkerCrash(t *testing.T) {
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(crashScript))

	resp, raw := uploadBatch(t, base, "a.jpg")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	payload := decodeJSON[api.ErrorResponse](t, raw)
	if payload.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestProcessWorkerErrorRecord(t *testing.T) {
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(errorRecordScript))

	resp, raw := uploadBatch(t, base, "a.jpg")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	payload := decodeJSON[api.ErrorResponse](t, raw)
	if !strings.Contains(payload.Error, "unreadable image") {
		t.Fatalf("expected worker error in message, got %q", payload.Error)
	}
}

func TestProcessClientDisconnect(t *testing.T) {
	const sleepScript = "#!/bin/sh\nsleep 30\n"
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(sleepScript))

	body, contentType := batchBody(t, "a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/process", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	jobID := waitForRunningJob(t, base)
	cancel()
	<-done

	deadline := time.Now().Add(10 * time.Second)
	for {
		jobResp, err := http.Get(base + "/api/jobs/" + jobID)
		if err != nil {
			t.Fatalf("fetch job: %v", err)
		}
		var record api.JobResponse
		decodeErr := json.NewDecoder(jobResp.Body).Decode(&record)
		jobResp.Body.Close()
		if decodeErr != nil {
			t.Fatalf("decode job: %v", decodeErr)
		}
		if record.Job.Status == "aborted" {
			if record.Job.ErrorMessage != "Client disconnected" {
				t.Fatalf("unexpected abort reason %q", record.Job.ErrorMessage)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never aborted, last status %q", record.Job.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestStopAbortsInFlightJob(t *testing.T) {
	const sleepScript = "#!/bin/sh\nsleep 30\n"
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerScript(sleepScript))
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	base := "http://" + d.Addr()

	body, contentType := batchBody(t, "a.jpg")
	req, err := http.NewRequest(http.MethodPost, base+"/api/process", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	jobID := waitForRunningJob(t, base)
	d.Stop()
	<-done

	job, err := store.GetByID(context.Background(), jobID)
	if err != nil || job == nil {
		t.Fatalf("fetch job: %v", err)
	}
	if job.Status != jobs.StatusAborted || job.ErrorMessage != jobs.AbortReasonShutdown {
		t.Fatalf("unexpected terminal record %s %q", job.Status, job.ErrorMessage)
	}
}

func waitForRunningJob(t *testing.T, base string) string {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/api/jobs?status=running")
		if err != nil {
			t.Fatalf("list jobs: %v", err)
		}
		var payload api.JobListResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if decodeErr != nil {
			t.Fatalf("decode list: %v", decodeErr)
		}
		if len(payload.Jobs) > 0 {
			return payload.Jobs[0].ID
		}
		if time.Now().After(deadline) {
			t.Fatal("no job reached the running state")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestProcessRejectsEmptyBatch(t *testing.T) {
	_, _, base := startTestDaemon(t)

	resp, _ := uploadBatch(t, base)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", resp.StatusCode)
	}
}

func TestProcessRejectsNonImage(t *testing.T) {
	_, _, base := startTestDaemon(t)

	resp, _ := uploadBatch(t, base, "notes.txt")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-image upload, got %d", resp.StatusCode)
	}
}

func TestProgressStream(t *testing.T) {
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(successScript))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/progress", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan progress.Event, 64)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event progress.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			events <- event
		}
	}()

	first := <-events
	if first.CurrentStep != progress.StepConnecting {
		t.Fatalf("expected connecting event first, got %+v", first)
	}

	uploadBody, uploadContentType := batchBody(t, "a.jpg", "b.jpg", "c.jpg")
	go func() {
		// t.Fatalf must not be called from a goroutine, so report upload
		// failures with Errorf instead.
		req, err := http.NewRequest(http.MethodPost, base+"/api/process", uploadBody)
		if err != nil {
			t.Errorf("build request: %v", err)
			return
		}
		req.Header.Set("Content-Type", uploadContentType)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Errorf("post batch: %v", err)
			return
		}
		resp.Body.Close()
	}()

	lastProcessed := 0
	sawTerminal := false
	for event := range events {
		if event.ProcessedFiles < lastProcessed {
			t.Fatalf("processed count regressed: %d -> %d", lastProcessed, event.ProcessedFiles)
		}
		lastProcessed = event.ProcessedFiles
		if event.Terminal() {
			if event.CurrentStep != progress.StepCompleted {
				t.Fatalf("unexpected terminal event %+v", event)
			}
			sawTerminal = true
			break
		}
	}
	if !sawTerminal {
		t.Fatal("stream ended without a terminal event")
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	_, _, base := startTestDaemon(t)

	for _, name := range []string{"nested%2Freport.pptx", "report.txt"} {
		resp, err := http.Get(base + "/api/download/" + name)
		if err != nil {
			t.Fatalf("download %s: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", name, resp.StatusCode)
		}
	}

	// Dot segments are collapsed by the mux before the handler runs, so a
	// traversal attempt lands on an unregistered path.
	resp, err := http.Get(base + "/api/download/..%2Fjobs.db")
	if err != nil {
		t.Fatalf("download traversal: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("traversal request must not succeed")
	}
}

func TestDownloadMissingArtifact(t *testing.T) {
	_, _, base := startTestDaemon(t)

	resp, err := http.Get(base + "/api/download/absent.pptx")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d, _, base := startTestDaemon(t)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var payload api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running {
		t.Fatal("expected running daemon")
	}
	if payload.LockFilePath != d.LockFilePath() {
		t.Fatalf("unexpected lock path %q", payload.LockFilePath)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	_, cfg, _ := startTestDaemon(t)

	store := testsupport.MustOpenStore(t, cfg)
	second, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second daemon start to fail")
	}
}

func TestJobsListFilter(t *testing.T) {
	_, _, base := startTestDaemon(t, testsupport.WithWorkerScript(successScript))

	if resp, _ := uploadBatch(t, base, "a.jpg", "b.jpg", "c.jpg"); resp.StatusCode != http.StatusOK {
		t.Fatalf("seed job failed with status %d", resp.StatusCode)
	}

	resp, err := http.Get(base + "/api/jobs?status=completed")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	defer resp.Body.Close()
	var payload api.JobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Jobs) != 1 || payload.Jobs[0].Status != "completed" {
		t.Fatalf("unexpected job list %+v", payload.Jobs)
	}

	bad, err := http.Get(base + "/api/jobs?status=bogus")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter, got %d", bad.StatusCode)
	}
}
