package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"orthodeck/internal/config"
	"orthodeck/internal/services"
)

// ArtifactExt is the only extension served by the download endpoint.
const ArtifactExt = ".pptx"

// Store is a filesystem-backed area holding uploaded inputs, transient
// per-job manifests, and generated outputs. It is purely a path/existence
// provider; it never spawns processes or touches the network.
type Store struct {
	inputsDir  string
	outputsDir string
	stagingDir string
}

// NewStore builds a store over the configured artifact directories. The
// directories themselves are created by config.EnsureDirectories at startup.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		inputsDir:  cfg.Paths.InputsDir,
		outputsDir: cfg.Paths.OutputsDir,
		stagingDir: cfg.Paths.StagingDir,
	}
}

// InputsDir returns the directory uploaded images are persisted to.
func (s *Store) InputsDir() string { return s.inputsDir }

// OutputsDir returns the directory completed report decks live in.
func (s *Store) OutputsDir() string { return s.outputsDir }

// SaveUpload persists one uploaded image under a collision-free name and
// returns its absolute path. The original filename survives as a sanitized
// suffix for traceability.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	base := sanitizeFileName(norm.NFC.String(filepath.Base(filename)))
	if base == "" {
		base = "image"
	}
	path := filepath.Join(s.inputsDir, uuid.NewString()+"-"+base)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

// WriteManifest writes the per-job input manifest (a JSON array of absolute
// input paths) consumed by the worker as its first argument.
func (s *Store) WriteManifest(jobID string, inputPaths []string) (string, error) {
	data, err := json.Marshal(inputPaths)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(s.stagingDir, jobID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// RemoveManifest deletes a job's manifest file. Absence is not an error.
func (s *Store) RemoveManifest(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	return nil
}

// JobOutputDir creates and returns the scratch output directory handed to the
// worker for one job.
func (s *Store) JobOutputDir(jobID string) (string, error) {
	dir := filepath.Join(s.outputsDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job output directory: %w", err)
	}
	return dir, nil
}

// CollectOutput moves the worker-reported artifact from the job's scratch
// directory into the outputs root under a job-unique name, removes the
// scratch directory, and returns the final base name. Callers only ever see
// the base name; download requests are validated against it and resolved
// under the outputs root.
func (s *Store) CollectOutput(jobID, reportedPath string) (string, error) {
	base := filepath.Base(strings.TrimSpace(reportedPath))
	if base == "" || base == "." {
		return "", services.Wrap(services.ErrNoResultRecord, "artifacts", "collect", "worker reported empty output path", nil)
	}
	src := filepath.Join(s.outputsDir, jobID, base)
	if _, err := os.Stat(src); err != nil {
		return "", services.Wrap(services.ErrNoResultRecord, "artifacts", "collect",
			fmt.Sprintf("worker output %s missing", base), err)
	}

	name := jobID + "-" + base
	if err := os.Rename(src, filepath.Join(s.outputsDir, name)); err != nil {
		return "", fmt.Errorf("move artifact: %w", err)
	}
	_ = os.RemoveAll(filepath.Join(s.outputsDir, jobID))
	return name, nil
}

// ValidateArtifactName rejects names that are empty, contain a path
// separator or parent-directory segment, or lack the report extension. It
// never touches the filesystem.
func (s *Store) ValidateArtifactName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return services.Wrap(services.ErrInvalidName, "download", "validate", "artifact name is empty", nil)
	}
	if trimmed != filepath.Base(trimmed) || strings.Contains(trimmed, "..") {
		return services.Wrap(services.ErrInvalidName, "download", "validate", "artifact name must not contain path segments", nil)
	}
	if !strings.EqualFold(filepath.Ext(trimmed), ArtifactExt) {
		return services.Wrap(services.ErrInvalidName, "download", "validate",
			fmt.Sprintf("artifact name must end in %s", ArtifactExt), nil)
	}
	return nil
}

// ResolveArtifact validates name and returns the absolute path of the
// artifact under the outputs root, or ErrNotFound when it does not exist.
func (s *Store) ResolveArtifact(name string) (string, error) {
	if err := s.ValidateArtifactName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.outputsDir, strings.TrimSpace(name))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "download", "resolve",
				fmt.Sprintf("artifact %s not found", name), nil)
		}
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrNotFound, "download", "resolve",
			fmt.Sprintf("artifact %s not found", name), nil)
	}
	return path, nil
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}
