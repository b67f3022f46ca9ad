package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orthodeck/internal/api"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <image>...",
		Short: "Upload an image batch and wait for the treatment report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("image %s: %w", path, err)
				}
			}

			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploading %d images...\n", len(args))

				result, err := client.Process(cmd.Context(), args)
				if err != nil {
					return fmt.Errorf("process batch: %w", err)
				}

				fmt.Fprintf(out, "Job:      %s\n", result.JobID)
				fmt.Fprintf(out, "Status:   %s\n", result.Status)
				if result.OutputPath != "" {
					fmt.Fprintf(out, "Artifact: %s\n", result.OutputPath)
					fmt.Fprintf(out, "Download: %s\n", result.DownloadURL)
				}
				return nil
			})
		},
	}
}
