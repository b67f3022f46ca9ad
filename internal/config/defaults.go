package config

const (
	defaultInputsDir      = "~/.local/share/orthodeck/inputs"
	defaultOutputsDir     = "~/.local/share/orthodeck/outputs"
	defaultStagingDir     = "~/.local/share/orthodeck/staging"
	defaultLogDir         = "~/.local/share/orthodeck/logs"
	defaultAPIBind        = "127.0.0.1:8317"
	defaultWorkerCommand  = "python3"
	defaultMaxFileMiB     = 25
	defaultMaxBatchFiles  = 40
	defaultNotifyTimeout  = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultWorkerTimeout  = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputsDir:  defaultInputsDir,
			OutputsDir: defaultOutputsDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Worker: Worker{
			Command:        defaultWorkerCommand,
			TimeoutSeconds: defaultWorkerTimeout,
		},
		Uploads: Uploads{
			MaxFileMiB:    defaultMaxFileMiB,
			MaxBatchFiles: defaultMaxBatchFiles,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completions:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
