package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InputsDir == "" {
		return errors.New("paths.inputs_dir must be set")
	}
	if c.Paths.OutputsDir == "" {
		return errors.New("paths.outputs_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.InputsDir == c.Paths.OutputsDir {
		return errors.New("paths.inputs_dir and paths.outputs_dir must differ")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Command == "" {
		return errors.New("worker.command must be set")
	}
	if c.Worker.Script == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/orthodeck/config.toml"
		}
		return fmt.Errorf("worker.script is required. Edit %s (create with 'orthodeck config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
