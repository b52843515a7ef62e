package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"aulagrab/internal/config"
	"aulagrab/internal/logging"
)

// fakeExecutor pretends to be ffmpeg: it records invocations and writes the
// output file unless told to fail.
type fakeExecutor struct {
	invocations [][]string
	binaries    []string
	fail        bool
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	f.binaries = append(f.binaries, binary)
	f.invocations = append(f.invocations, args)
	if onOutput != nil {
		onOutput("frame=  100 fps= 25")
	}
	if f.fail {
		return errors.New("command failed: exit status 1")
	}
	// ffmpeg creates the output file; the path is the final argument.
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func writeComponents(t *testing.T, dir string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		for _, kind := range []string{"deskshare", "webcams"} {
			path := filepath.Join(dir, key+"_"+kind+".webm")
			if err := os.WriteFile(path, []byte("webm"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func newMerger(t *testing.T, exec Executor) (*Merger, string, string) {
	t.Helper()
	root := t.TempDir()
	downloadDir := filepath.Join(root, "downloads")
	mergedDir := filepath.Join(root, "merged")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	m, err := New(&cfg, downloadDir, mergedDir, logging.NewNop(), WithExecutor(exec))
	if err != nil {
		t.Fatalf("new merger: %v", err)
	}
	return m, downloadDir, mergedDir
}

func TestMergeInvocationContract(t *testing.T) {
	exec := &fakeExecutor{}
	m, downloadDir, mergedDir := newMerger(t, exec)
	writeComponents(t, downloadDir, "202601051750")

	stats, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if exec.binaries[0] != "ffmpeg" {
		t.Fatalf("binary: %q", exec.binaries[0])
	}

	want := []string{
		"-v", "quiet",
		"-stats",
		"-i", filepath.Join(downloadDir, "202601051750_deskshare.webm"),
		"-i", filepath.Join(downloadDir, "202601051750_webcams.webm"),
		"-filter_complex", "[1]scale=iw/5:-1[pip];[0][pip]overlay=main_w-overlay_w-20:main_h-overlay_h-20[merged];[merged]scale=1280:-2",
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "28",
		"-c:a", "aac",
		filepath.Join(mergedDir, "202601051750_working.mp4"),
	}
	if !reflect.DeepEqual(exec.invocations[0], want) {
		t.Fatalf("args mismatch:\n got %v\nwant %v", exec.invocations[0], want)
	}

	if _, err := os.Stat(filepath.Join(mergedDir, "202601051750_merged.mp4")); err != nil {
		t.Fatalf("merged output missing: %v", err)
	}
}

func TestMergeSkipsExistingOutput(t *testing.T) {
	exec := &fakeExecutor{}
	m, downloadDir, mergedDir := newMerger(t, exec)
	writeComponents(t, downloadDir, "202601051750")

	if err := os.MkdirAll(mergedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mergedDir, "202601051750_merged.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := m.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || len(exec.invocations) != 0 {
		t.Fatalf("stats=%+v invocations=%d", stats, len(exec.invocations))
	}
}

func TestMergeRequiresBothComponents(t *testing.T) {
	exec := &fakeExecutor{}
	m, downloadDir, _ := newMerger(t, exec)

	// Desktop share without a webcam counterpart.
	path := filepath.Join(downloadDir, "202601051750_deskshare.webm")
	if err := os.WriteFile(path, []byte("webm"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := m.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 0 || len(exec.invocations) != 0 {
		t.Fatalf("lone component must not merge: %+v", stats)
	}
}

func TestMergeFailureIsolatedPerKey(t *testing.T) {
	exec := &fakeExecutor{fail: true}
	m, downloadDir, mergedDir := newMerger(t, exec)
	writeComponents(t, downloadDir, "202601051750", "202601061000")

	stats, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("per-key failure must not abort: %v", err)
	}
	if stats.Failed != 2 || stats.Processed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
	if len(exec.invocations) != 2 {
		t.Fatalf("both keys must be attempted, got %d", len(exec.invocations))
	}
	entries, _ := os.ReadDir(mergedDir)
	if len(entries) != 0 {
		t.Fatalf("failed merges left files: %v", entries)
	}
}
