package journal

import (
	"context"
	"testing"
	"time"

	"aulagrab/internal/stagecache"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Begin(ctx, "modulo_4")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	err = store.RecordStage(ctx, StageRun{
		RunID:    id,
		Stage:    "enumerate",
		Stats:    stagecache.Stats{Processed: 2, Failed: 1},
		Duration: 1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record stage: %v", err)
	}

	if err := store.Finish(ctx, id, "completed", ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != id || run.Shard != "modulo_4" || run.Status != "completed" {
		t.Fatalf("run mismatch: %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished_at not set")
	}

	stages, err := store.StagesForRun(ctx, id)
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("expected one stage, got %d", len(stages))
	}
	if stages[0].Stage != "enumerate" || stages[0].Stats.Processed != 2 || stages[0].Stats.Failed != 1 {
		t.Fatalf("stage mismatch: %+v", stages[0])
	}
	if stages[0].Duration != 1500*time.Millisecond {
		t.Fatalf("duration mismatch: %v", stages[0].Duration)
	}
}

func TestRecentRunsOrdering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Begin(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	// started_at has sub-second precision; force distinct ordering.
	time.Sleep(5 * time.Millisecond)
	second, err := store.Begin(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != second {
		t.Fatalf("expected newest run %s first, got %+v", second, runs)
	}

	runs, err = store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[1].ID != first {
		t.Fatalf("ordering wrong: %+v", runs)
	}
}
