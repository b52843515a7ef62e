package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aulagrab/internal/artifactkey"
	"aulagrab/internal/fileutil"
	"aulagrab/internal/logging"
	"aulagrab/internal/scrape"
	"aulagrab/internal/services"
	"aulagrab/internal/testsupport"
)

// epoch 1767646200903 is 2026-01-05 17:50 in the pinned zone.
const testKey = "202601051750"

func TestKindForURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn/presentation/1/video/webcams.webm", KindWebcams},
		{"https://cdn/presentation/1/deskshare/deskshare.webm", KindDeskshare},
		{"https://cdn/presentation/1/other.webm", KindVideo},
	}
	for _, tc := range cases {
		if got := KindForURL(tc.url); got != tc.want {
			t.Errorf("KindForURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

type fixture struct {
	d        *Downloader
	dataDir  string
	dlDir    string
	mergeDir string
	server   *httptest.Server
	hits     *atomic.Int64
}

func newFixture(t *testing.T, status int) *fixture {
	t.Helper()
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte("webm-bytes:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)

	deriver, err := artifactkey.New("America/Santiago")
	if err != nil {
		t.Fatalf("deriver: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		dataDir:  cfg.Paths.DataDir,
		dlDir:    cfg.Paths.DownloadDir,
		mergeDir: cfg.Paths.MergedDir,
		server:   server,
		hits:     &hits,
	}
	f.d = New(cfg, deriver, f.dataDir, f.dlDir, f.mergeDir, logging.NewNop())
	return f
}

func TestTransferTimeoutComesFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Download.TransferTimeoutMinutes = 5
	deriver, err := artifactkey.New(cfg.Timezone)
	if err != nil {
		t.Fatal(err)
	}
	d := New(cfg, deriver, cfg.Paths.DataDir, cfg.Paths.DownloadDir, cfg.Paths.MergedDir, logging.NewNop())
	if d.client.Timeout != 5*time.Minute {
		t.Fatalf("client timeout %v", d.client.Timeout)
	}
}

func (f *fixture) writePlayback(t *testing.T, items []scrape.ResolvedItem) {
	t.Helper()
	path := filepath.Join(f.dataDir, scrape.PlaybackFilePrefix+"test.json")
	if err := fileutil.WriteJSONAtomic(path, items); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) item() scrape.ResolvedItem {
	return scrape.ResolvedItem{
		Recording: scrape.Recording{Name: "Mon, 5 Jan 2026, 5:50 PM", Type: "Presentation"},
		Content: scrape.MediaContent{Videos: []string{
			f.server.URL + "/presentation/1767646200903/deskshare/deskshare.webm",
			f.server.URL + "/presentation/1767646200903/video/webcams.webm",
		}},
	}
}

func TestDownloadWritesComponents(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.writePlayback(t, []scrape.ResolvedItem{f.item()})

	stats, err := f.d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	for _, kind := range []string{KindDeskshare, KindWebcams} {
		path := filepath.Join(f.dlDir, artifactkey.ComponentFile(testKey, kind))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("component missing: %v", err)
		}
		if !strings.HasPrefix(string(data), "webm-bytes:") {
			t.Fatalf("wrong content: %q", data)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(f.dlDir, "*.partial"))
	if len(leftovers) != 0 {
		t.Fatalf("partial files left behind: %v", leftovers)
	}
}

func TestDownloadSkipsExistingComponents(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.writePlayback(t, []scrape.ResolvedItem{f.item()})

	if _, err := f.d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := f.hits.Load()

	stats, err := f.d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Fatalf("second run stats: %+v", stats)
	}
	if f.hits.Load() != before {
		t.Fatal("re-run must not transfer anything")
	}
}

func TestDownloadMergedOutputShortCircuits(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.writePlayback(t, []scrape.ResolvedItem{f.item()})

	merged := filepath.Join(f.mergeDir, artifactkey.MergedFile(testKey))
	testsupport.WriteFile(t, merged, []byte("mp4"))

	stats, err := f.d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if f.hits.Load() != 0 {
		t.Fatal("merged output must suppress all component downloads")
	}
}

func TestDownloadFailureLeavesNoFinalFile(t *testing.T) {
	f := newFixture(t, http.StatusNotFound)
	f.writePlayback(t, []scrape.ResolvedItem{f.item()})

	stats, err := f.d.Run(context.Background())
	if err != nil {
		t.Fatalf("per-item failure must not abort: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	entries, err := os.ReadDir(f.dlDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed transfer left files: %v", entries)
	}
}

func TestDownloadUnparsableNameIsSkipped(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	item := scrape.ResolvedItem{
		Recording: scrape.Recording{Name: "no date here"},
		Content:   scrape.MediaContent{Videos: []string{f.server.URL + "/no-epoch.webm"}},
	}
	f.writePlayback(t, []scrape.ResolvedItem{item})

	stats, err := f.d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestDownloadMissingPlaybackDataIsStructural(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	_, err := f.d.Run(context.Background())
	if err == nil || !services.Structural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
}
