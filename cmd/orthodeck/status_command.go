package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"orthodeck/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch status: %w (is the daemon running?)", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Running:       %s\n", yesNo(status.Running))
				fmt.Fprintf(out, "PID:           %d\n", status.PID)
				fmt.Fprintf(out, "Job database:  %s\n", status.JobDBPath)
				fmt.Fprintf(out, "Lock file:     %s\n", status.LockFilePath)
				fmt.Fprintf(out, "Live workers:  %d\n", status.LiveWorkers)
				fmt.Fprintf(out, "Subscribers:   %d\n", status.Subscribers)
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Total", "Active", "Completed", "Failed", "Aborted"},
					[][]string{{
						strconv.Itoa(status.Jobs.Total),
						strconv.Itoa(status.Jobs.Active),
						strconv.Itoa(status.Jobs.Completed),
						strconv.Itoa(status.Jobs.Failed),
						strconv.Itoa(status.Jobs.Aborted),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
