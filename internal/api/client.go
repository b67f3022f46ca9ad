package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orthodeck/internal/config"
)

// Client talks to a running daemon's HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client from the configured API bind address. Returns
// nil when no bind address is configured.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var payload DaemonStatus
	err := c.getJSON(ctx, "/api/status", nil, &payload)
	return payload, err
}

// Jobs lists job history, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses ...string) ([]JobSummary, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var payload JobListResponse
	if err := c.getJSON(ctx, "/api/jobs", values, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// Job fetches a single job by ID.
func (c *Client) Job(ctx context.Context, id string) (JobSummary, error) {
	var payload JobResponse
	err := c.getJSON(ctx, "/api/jobs/"+url.PathEscape(id), nil, &payload)
	return payload.Job, err
}

// Process uploads an image batch and blocks until the job reaches a
// terminal state. The per-request timeout is disabled because workers run
// for as long as the batch demands.
func (c *Client) Process(ctx context.Context, paths []string) (ProcessResponse, error) {
	if c == nil {
		return ProcessResponse{}, fmt.Errorf("daemon api is not configured")
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := streamFiles(writer, paths)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/process"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		return ProcessResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return ProcessResponse{}, err
	}
	defer resp.Body.Close()

	var payload ProcessResponse
	if err := decodeResponse(resp, &payload); err != nil {
		return ProcessResponse{}, err
	}
	return payload, nil
}

func streamFiles(writer *multipart.Writer, paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		part, err := writer.CreateFormFile("images", filepath.Base(path))
		if err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return fmt.Errorf("stream %s: %w", path, err)
		}
		f.Close()
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	if c == nil {
		return fmt.Errorf("daemon api is not configured")
	}
	ref := &url.URL{Path: path}
	if len(values) > 0 {
		ref.RawQuery = values.Encode()
	}
	endpoint := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon api returned status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
