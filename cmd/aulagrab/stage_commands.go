package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"aulagrab/internal/journal"
	"aulagrab/internal/logging"
	"aulagrab/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: enumerate, resolve, download, merge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeStages(cmd, ctx, pipeline.DefaultStages()...)
		},
	}
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	descriptions := map[string]string{
		"enumerate": "Collect module links and recording listings",
		"resolve":   "Visit playback pages and inventory their media",
		"download":  "Download media components for resolved recordings",
		"merge":     "Merge desktop-share and webcam components with ffmpeg",
	}

	var cmds []*cobra.Command
	for _, stage := range pipeline.DefaultStages() {
		stage := stage
		cmds = append(cmds, &cobra.Command{
			Use:   stage.Name(),
			Short: descriptions[stage.Name()],
			RunE: func(cmd *cobra.Command, args []string) error {
				return executeStages(cmd, ctx, stage)
			},
		})
	}
	return cmds
}

// executeStages is the shared driver behind run and the per-stage commands:
// take the single-instance lock, open the journal, build the environment,
// and render the per-stage summary.
func executeStages(cmd *cobra.Command, ctx *commandContext, stages ...pipeline.Stage) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "aulagrab.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another aulagrab instance is already running against %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	jrnl, err := journal.Open(cfg.Paths.DataDir)
	if err != nil {
		// History is a convenience; the run itself must not depend on it.
		logger.Warn("run journal unavailable", logging.Error(err))
		jrnl = nil
	} else {
		defer jrnl.Close()
	}

	env, err := pipeline.NewEnv(cfg, logger, jrnl)
	if err != nil {
		return err
	}
	defer env.Close()

	reports, runErr := pipeline.New(env, stages...).Run(cmd.Context())
	printReports(cmd, reports)
	return runErr
}

func printReports(cmd *cobra.Command, reports []pipeline.Report) {
	if len(reports) == 0 {
		return
	}
	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		status := "ok"
		if report.Err != nil {
			status = "failed"
		}
		rows = append(rows, []string{
			report.Stage,
			status,
			strconv.Itoa(report.Stats.Processed),
			strconv.Itoa(report.Stats.Skipped),
			strconv.Itoa(report.Stats.Failed),
			report.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]tableColumn{
			{title: "Stage"},
			{title: "Status"},
			{title: "Processed", right: true},
			{title: "Skipped", right: true},
			{title: "Failed", right: true},
			{title: "Duration", right: true},
		},
		rows,
	))
}
