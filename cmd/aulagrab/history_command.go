package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"aulagrab/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jrnl, err := journal.Open(cfg.Paths.DataDir)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer jrnl.Close()

			if runID != "" {
				return printRunDetail(cmd, jrnl, runID)
			}
			return printRunList(cmd, jrnl, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show per-stage detail for one run")
	return cmd
}

func printRunList(cmd *cobra.Command, jrnl *journal.Store, limit int) error {
	runs, err := jrnl.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		shard := run.Shard
		if shard == "" {
			shard = "-"
		}
		rows = append(rows, []string{
			run.ID[:8],
			shard,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			run.Status,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]tableColumn{
			{title: "Run"},
			{title: "Shard"},
			{title: "Started"},
			{title: "Duration", right: true},
			{title: "Status"},
		},
		rows,
	))
	return nil
}

func printRunDetail(cmd *cobra.Command, jrnl *journal.Store, prefix string) error {
	runs, err := jrnl.RecentRuns(cmd.Context(), 0)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	for _, run := range runs {
		if run.ID == prefix || (len(prefix) >= 4 && len(run.ID) >= len(prefix) && run.ID[:len(prefix)] == prefix) {
			stages, err := jrnl.StagesForRun(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("query stages: %w", err)
			}
			rows := make([][]string, 0, len(stages))
			for _, stage := range stages {
				rows = append(rows, []string{
					stage.Stage,
					strconv.Itoa(stage.Stats.Processed),
					strconv.Itoa(stage.Stats.Skipped),
					strconv.Itoa(stage.Stats.Failed),
					stage.Duration.Round(time.Millisecond).String(),
					stage.Error,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]tableColumn{
					{title: "Stage"},
					{title: "Processed", right: true},
					{title: "Skipped", right: true},
					{title: "Failed", right: true},
					{title: "Duration", right: true},
					{title: "Error"},
				},
				rows,
			))
			return nil
		}
	}
	return fmt.Errorf("no run matching %q", prefix)
}
