package pipeline

import (
	"context"

	"aulagrab/internal/download"
	"aulagrab/internal/journal"
	"aulagrab/internal/merge"
	"aulagrab/internal/scrape"
	"aulagrab/internal/stagecache"
)

func journalStage(runID string, report Report, errMsg string) journal.StageRun {
	return journal.StageRun{
		RunID:    runID,
		Stage:    report.Stage,
		Stats:    report.Stats,
		Duration: report.Duration,
		Error:    errMsg,
	}
}

type enumerateStage struct{}

func (enumerateStage) Name() string { return "enumerate" }

func (enumerateStage) Run(ctx context.Context, env *Env) (stagecache.Stats, error) {
	return scrape.NewEnumerator(env, env.Config, env.DataDir, env.Logger).Run(ctx)
}

type resolveStage struct{}

func (resolveStage) Name() string { return "resolve" }

func (resolveStage) Run(ctx context.Context, env *Env) (stagecache.Stats, error) {
	return scrape.NewResolver(env, env.Config, env.DataDir, env.Logger).Run(ctx)
}

type downloadStage struct{}

func (downloadStage) Name() string { return "download" }

func (downloadStage) Run(ctx context.Context, env *Env) (stagecache.Stats, error) {
	return download.New(env.Config, env.Deriver, env.DataDir, env.DownloadDir, env.MergedDir, env.Logger).Run(ctx)
}

type mergeStage struct{}

func (mergeStage) Name() string { return "merge" }

func (mergeStage) Run(ctx context.Context, env *Env) (stagecache.Stats, error) {
	m, err := merge.New(env.Config, env.DownloadDir, env.MergedDir, env.Logger)
	if err != nil {
		return stagecache.Stats{}, err
	}
	return m.Run(ctx)
}

// DefaultStages returns the full pipeline in its fixed order.
func DefaultStages() []Stage {
	return []Stage{enumerateStage{}, resolveStage{}, downloadStage{}, mergeStage{}}
}

// StageByName returns a single stage for standalone invocation.
func StageByName(name string) (Stage, bool) {
	for _, stage := range DefaultStages() {
		if stage.Name() == name {
			return stage, true
		}
	}
	return nil, false
}
