package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"orthodeck/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List job history or show one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if len(args) == 1 {
					return showJob(cmd, client, args[0])
				}

				jobs, err := client.Jobs(cmd.Context(), statusFilters...)
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.Status,
						fmt.Sprintf("%d/%d", job.ProcessedFiles, job.TotalFiles),
						job.OutputArtifact,
						job.CreatedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Files", "Artifact", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (created, running, completed, failed, aborted)")
	return cmd
}

func showJob(cmd *cobra.Command, client *api.Client, id string) error {
	job, err := client.Job(cmd.Context(), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("fetch job: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %s\n", job.ID)
	fmt.Fprintf(out, "Status:     %s\n", job.Status)
	fmt.Fprintf(out, "Files:      %d/%d\n", job.ProcessedFiles, job.TotalFiles)
	if job.OutputArtifact != "" {
		fmt.Fprintf(out, "Artifact:   %s\n", job.OutputArtifact)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "Created:    %s\n", job.CreatedAt)
	fmt.Fprintf(out, "Updated:    %s\n", job.UpdatedAt)

	if len(job.Categories) > 0 {
		names := make([]string, 0, len(job.Categories))
		for name := range job.Categories {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.Itoa(job.Categories[name])})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Category", "Images"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
	}
	return nil
}
