// Package pipeline orders the four stages — enumerate, resolve, download,
// merge — into one sequential run over a shared environment. Stages hand data
// to each other only through their persisted output files, so any stage can
// also be run on its own against whatever the previous runs left behind.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"aulagrab/internal/logging"
	"aulagrab/internal/stagecache"
)

// Stage is one pipeline step. A returned error is structural and aborts the
// run; per-item failures belong in the stats.
type Stage interface {
	Name() string
	Run(ctx context.Context, env *Env) (stagecache.Stats, error)
}

// Report captures one stage's outcome for the run summary.
type Report struct {
	Stage    string
	Stats    stagecache.Stats
	Duration time.Duration
	Err      error
}

// Pipeline executes stages in order, fail-fast, journaling as it goes.
type Pipeline struct {
	env    *Env
	stages []Stage
	logger *slog.Logger
}

// New assembles a pipeline over the given stages.
func New(env *Env, stages ...Stage) *Pipeline {
	return &Pipeline{
		env:    env,
		stages: stages,
		logger: logging.NewComponentLogger(env.Logger, "pipeline"),
	}
}

// Run executes every stage in order. The first structural error stops the
// run; the reports cover every stage that started.
func (p *Pipeline) Run(ctx context.Context) ([]Report, error) {
	runID := p.beginJournal(ctx)

	var reports []Report
	for _, stage := range p.stages {
		p.logger.Info("stage started", logging.String("stage", stage.Name()))
		started := time.Now()
		stats, err := stage.Run(ctx, p.env)
		report := Report{
			Stage:    stage.Name(),
			Stats:    stats,
			Duration: time.Since(started),
			Err:      err,
		}
		reports = append(reports, report)
		p.recordStage(ctx, runID, report)

		if err != nil {
			p.logger.Error("stage failed",
				logging.String("stage", stage.Name()),
				logging.Error(err))
			p.finishJournal(ctx, runID, "failed", err.Error())
			return reports, err
		}
		p.logger.Info("stage completed",
			logging.String("stage", stage.Name()),
			logging.Int("processed", stats.Processed),
			logging.Int("skipped", stats.Skipped),
			logging.Int("failed", stats.Failed),
			logging.Duration("duration", report.Duration))
	}

	p.finishJournal(ctx, runID, "completed", "")
	return reports, nil
}

func (p *Pipeline) beginJournal(ctx context.Context) string {
	if p.env.Journal == nil {
		return ""
	}
	runID, err := p.env.Journal.Begin(ctx, p.env.Shard)
	if err != nil {
		p.logger.Warn("journal unavailable", logging.Error(err))
		return ""
	}
	return runID
}

func (p *Pipeline) recordStage(ctx context.Context, runID string, report Report) {
	if p.env.Journal == nil || runID == "" {
		return
	}
	errMsg := ""
	if report.Err != nil {
		errMsg = report.Err.Error()
	}
	if err := p.env.Journal.RecordStage(ctx, journalStage(runID, report, errMsg)); err != nil {
		p.logger.Warn("journal write failed", logging.Error(err))
	}
}

func (p *Pipeline) finishJournal(ctx context.Context, runID, status, errMsg string) {
	if p.env.Journal == nil || runID == "" {
		return
	}
	if err := p.env.Journal.Finish(ctx, runID, status, errMsg); err != nil {
		p.logger.Warn("journal write failed", logging.Error(err))
	}
}
