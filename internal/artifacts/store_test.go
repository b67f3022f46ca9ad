package artifacts_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orthodeck/internal/artifacts"
	"orthodeck/internal/services"
	"orthodeck/internal/testsupport"
)

func newStore(t *testing.T) *artifacts.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return artifacts.NewStore(cfg)
}

func TestSaveUploadUsesUniqueSanitizedNames(t *testing.T) {
	store := newStore(t)

	first, err := store.SaveUpload("front view.jpg", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	second, err := store.SaveUpload("front view.jpg", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if first == second {
		t.Fatal("expected unique paths for identical filenames")
	}
	if !strings.HasSuffix(first, "front view.jpg") {
		t.Fatalf("expected original base name suffix, got %q", first)
	}

	hostile, err := store.SaveUpload("../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if filepath.Dir(hostile) != store.InputsDir() {
		t.Fatalf("expected upload confined to inputs dir, got %q", hostile)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	store := newStore(t)

	path, err := store.WriteManifest("job-1", []string{"/a.jpg", "/b.jpg"})
	if err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if string(data) != `["/a.jpg","/b.jpg"]` {
		t.Fatalf("unexpected manifest content: %s", data)
	}

	if err := store.RemoveManifest(path); err != nil {
		t.Fatalf("RemoveManifest failed: %v", err)
	}
	if err := store.RemoveManifest(path); err != nil {
		t.Fatalf("RemoveManifest should tolerate absence: %v", err)
	}
}

func TestCollectOutputFlattensJobArtifact(t *testing.T) {
	store := newStore(t)

	dir, err := store.JobOutputDir("job-2")
	if err != nil {
		t.Fatalf("JobOutputDir failed: %v", err)
	}
	artifact := filepath.Join(dir, "treatment_report.pptx")
	if err := os.WriteFile(artifact, []byte("deck"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	final, err := store.CollectOutput("job-2", artifact)
	if err != nil {
		t.Fatalf("CollectOutput failed: %v", err)
	}
	if final != "job-2-treatment_report.pptx" {
		t.Fatalf("expected a bare base name, got %q", final)
	}
	if err := store.ValidateArtifactName(final); err != nil {
		t.Fatalf("collected name must be downloadable: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(store.OutputsDir(), final))
	if err != nil || string(data) != "deck" {
		t.Fatalf("expected artifact bytes preserved, got %q err %v", data, err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected scratch dir removed, stat err %v", err)
	}
}

func TestCollectOutputMissingArtifact(t *testing.T) {
	store := newStore(t)

	if _, err := store.JobOutputDir("job-3"); err != nil {
		t.Fatalf("JobOutputDir failed: %v", err)
	}
	_, err := store.CollectOutput("job-3", "treatment_report.pptx")
	if !errors.Is(err, services.ErrNoResultRecord) {
		t.Fatalf("expected ErrNoResultRecord, got %v", err)
	}
}

func TestValidateArtifactNameRejectsBeforeFilesystem(t *testing.T) {
	store := newStore(t)

	cases := []string{
		"",
		"   ",
		"../../etc/passwd",
		"..\\secret.pptx",
		"nested/report.pptx",
		"report.pdf",
		"report",
	}
	for _, name := range cases {
		if err := store.ValidateArtifactName(name); !errors.Is(err, services.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}

	if err := store.ValidateArtifactName("job-1-treatment_report.pptx"); err != nil {
		t.Fatalf("expected valid name accepted, got %v", err)
	}
}

func TestResolveArtifact(t *testing.T) {
	store := newStore(t)

	if _, err := store.ResolveArtifact("missing.pptx"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	path := filepath.Join(store.OutputsDir(), "found.pptx")
	if err := os.WriteFile(path, []byte("deck"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	resolved, err := store.ResolveArtifact("found.pptx")
	if err != nil {
		t.Fatalf("ResolveArtifact failed: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
}
