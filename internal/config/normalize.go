package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	c.normalizeUploads()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputsDir, err = expandPath(c.Paths.InputsDir); err != nil {
		return fmt.Errorf("paths.inputs_dir: %w", err)
	}
	if c.Paths.OutputsDir, err = expandPath(c.Paths.OutputsDir); err != nil {
		return fmt.Errorf("paths.outputs_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWorker() error {
	c.Worker.Command = strings.TrimSpace(c.Worker.Command)
	if c.Worker.Command == "" {
		c.Worker.Command = defaultWorkerCommand
	}
	c.Worker.Script = strings.TrimSpace(c.Worker.Script)
	if c.Worker.Script != "" {
		expanded, err := expandPath(c.Worker.Script)
		if err != nil {
			return fmt.Errorf("worker.script: %w", err)
		}
		c.Worker.Script = expanded
	}
	if c.Worker.TimeoutSeconds < 0 {
		c.Worker.TimeoutSeconds = 0
	}
	return nil
}

func (c *Config) normalizeUploads() {
	if c.Uploads.MaxFileMiB <= 0 {
		c.Uploads.MaxFileMiB = defaultMaxFileMiB
	}
	if c.Uploads.MaxBatchFiles <= 0 {
		c.Uploads.MaxBatchFiles = defaultMaxBatchFiles
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
