package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"orthodeck/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set worker.script before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Config path:   %s\n", path)
			} else {
				fmt.Fprintln(out, "Config path:   (defaults, no file found)")
			}
			fmt.Fprintf(out, "Inputs dir:    %s\n", cfg.Paths.InputsDir)
			fmt.Fprintf(out, "Outputs dir:   %s\n", cfg.Paths.OutputsDir)
			fmt.Fprintf(out, "Staging dir:   %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "Log dir:       %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "API bind:      %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "Worker:        %s %s\n", cfg.Worker.Command, cfg.Worker.Script)
			if cfg.Worker.TimeoutSeconds > 0 {
				fmt.Fprintf(out, "Timeout:       %ds\n", cfg.Worker.TimeoutSeconds)
			}
			fmt.Fprintf(out, "Uploads:       %d files max, %d MiB each\n", cfg.Uploads.MaxBatchFiles, cfg.Uploads.MaxFileMiB)
			if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
				fmt.Fprintf(out, "Ntfy topic:    %s\n", topic)
			}
			fmt.Fprintf(out, "Logging:       %s at %s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}
