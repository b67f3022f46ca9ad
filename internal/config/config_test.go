package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orthodeck/internal/config"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadExpandsPathsAndAppliesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := writeConfig(t, t.TempDir(), `
[worker]
script = "~/worker/main.py"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}

	wantInputs := filepath.Join(tempHome, ".local", "share", "orthodeck", "inputs")
	if cfg.Paths.InputsDir != wantInputs {
		t.Fatalf("unexpected inputs dir: got %q want %q", cfg.Paths.InputsDir, wantInputs)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8317" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Worker.Command != "python3" {
		t.Fatalf("expected default worker command, got %q", cfg.Worker.Command)
	}
	if cfg.Worker.Script != filepath.Join(tempHome, "worker", "main.py") {
		t.Fatalf("unexpected worker script: %q", cfg.Worker.Script)
	}
	if cfg.Uploads.MaxFileMiB != 25 || cfg.Uploads.MaxBatchFiles != 40 {
		t.Fatalf("unexpected upload defaults: %+v", cfg.Uploads)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadRequiresWorkerScript(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, t.TempDir(), "")
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error when worker.script missing")
	}
	if !strings.Contains(err.Error(), "worker.script") {
		t.Fatalf("expected worker.script in error, got %v", err)
	}
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, t.TempDir(), `
[worker]
script = "~/worker/main.py"

[logging]
format = "yaml"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestLoadRejectsSharedInputOutputDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, t.TempDir(), `
[paths]
inputs_dir = "~/data"
outputs_dir = "~/data"

[worker]
script = "~/worker/main.py"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared dir rejection, got %v", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	if err := config.WriteSample(target); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[worker]") {
		t.Fatal("expected worker section in sample config")
	}
	if err := config.WriteSample(target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestValidateNormalizedTimeout(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, t.TempDir(), `
[worker]
script = "~/worker/main.py"
timeout_seconds = -5
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Worker.TimeoutSeconds != 0 {
		t.Fatalf("expected negative timeout normalized to 0, got %d", cfg.Worker.TimeoutSeconds)
	}
}
