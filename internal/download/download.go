// Package download implements the transfer stage: it streams each resolved
// recording's media components to deterministic per-key file names. Files are
// written to a temporary path and renamed on completion, so a final path only
// ever holds a complete transfer.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"aulagrab/internal/artifactkey"
	"aulagrab/internal/config"
	"aulagrab/internal/fileutil"
	"aulagrab/internal/logging"
	"aulagrab/internal/scrape"
	"aulagrab/internal/services"
	"aulagrab/internal/stagecache"
)

// Kind labels for media components, classified by URL substring.
const (
	KindWebcams   = "webcams"
	KindDeskshare = "deskshare"
	KindVideo     = "video"
)

// KindForURL classifies a media URL into its component kind.
func KindForURL(url string) string {
	switch {
	case strings.Contains(url, KindWebcams):
		return KindWebcams
	case strings.Contains(url, KindDeskshare):
		return KindDeskshare
	default:
		return KindVideo
	}
}

// Downloader transfers the media components of resolved recordings.
type Downloader struct {
	client      *http.Client
	deriver     *artifactkey.Deriver
	dataDir     string
	downloadDir string
	mergedDir   string
	logger      *slog.Logger
	progress    bool
}

// New wires the stage. The three directories are shard-resolved; dataDir
// holds the resolve stage's output, downloadDir receives the components, and
// mergedDir is consulted for the merged-output short-circuit.
func New(cfg *config.Config, deriver *artifactkey.Deriver, dataDir, downloadDir, mergedDir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:      &http.Client{Timeout: time.Duration(cfg.Download.TransferTimeoutMinutes) * time.Minute},
		deriver:     deriver,
		dataDir:     dataDir,
		downloadDir: downloadDir,
		mergedDir:   mergedDir,
		logger:      logging.NewComponentLogger(logger, "download"),
		progress:    isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Run downloads every component of every resolved recording. Per-item
// failures are counted and the batch continues; only a missing resolve
// output aborts the stage.
func (d *Downloader) Run(ctx context.Context) (stagecache.Stats, error) {
	var stats stagecache.Stats

	items, err := d.loadItems()
	if err != nil {
		return stats, err
	}
	if len(items) == 0 {
		d.logger.Warn("no resolved recordings to download")
		return stats, nil
	}
	if err := os.MkdirAll(d.downloadDir, 0o755); err != nil {
		return stats, services.Wrap(services.ErrStructural, "download", "prepare directory", d.downloadDir, err)
	}

	for _, item := range items {
		switch d.downloadItem(ctx, item) {
		case itemDone:
			stats.Processed++
		case itemSkipped:
			stats.Skipped++
		case itemFailed:
			stats.Failed++
		}
		if ctx.Err() != nil {
			return stats, services.Wrap(services.ErrStructural, "download", "batch", "canceled", ctx.Err())
		}
	}
	return stats, nil
}

type itemResult int

const (
	itemDone itemResult = iota
	itemSkipped
	itemFailed
)

// downloadItem transfers all components of one recording.
func (d *Downloader) downloadItem(ctx context.Context, item scrape.ResolvedItem) itemResult {
	mediaURL := ""
	if len(item.Content.Videos) > 0 {
		mediaURL = item.Content.Videos[0]
	}
	key, err := d.deriver.Derive(item.Name, mediaURL)
	if err != nil {
		d.logger.Warn("no timestamp for recording; skipping",
			logging.String("recording", item.Name),
			logging.Error(err))
		return itemSkipped
	}

	// An existing merged output makes every component download pointless.
	if _, err := os.Stat(filepath.Join(d.mergedDir, artifactkey.MergedFile(key))); err == nil {
		d.logger.Info("already merged; skipping components", logging.String("key", key))
		return itemSkipped
	}

	transferred, failed := 0, 0
	for _, url := range item.Content.Videos {
		name := artifactkey.ComponentFile(key, KindForURL(url))
		dest := filepath.Join(d.downloadDir, name)
		if _, err := os.Stat(dest); err == nil {
			d.logger.Debug("component present; skipping", logging.String("file", name))
			continue
		}
		if err := d.fetch(ctx, url, dest); err != nil {
			failed++
			d.logger.Warn("component download failed",
				logging.String("file", name),
				logging.Error(err))
			continue
		}
		transferred++
		d.logger.Info("component downloaded", logging.String("file", name))
	}

	switch {
	case failed > 0:
		return itemFailed
	case transferred == 0:
		return itemSkipped
	default:
		return itemDone
	}
}

// fetch streams url to dest through a temporary path. The rename at the end
// is what publishes the file; a failed transfer leaves nothing at dest.
func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	partial := dest + ".partial"
	file, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer os.Remove(partial)

	var sink io.Writer = file
	if d.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
		sink = io.MultiWriter(file, bar)
	}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		file.Close()
		return fmt.Errorf("stream body: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(partial, dest)
}

// loadItems reads the most recently modified resolve output.
func (d *Downloader) loadItems() ([]scrape.ResolvedItem, error) {
	latest, err := fileutil.LatestByModTime(filepath.Join(d.dataDir, scrape.PlaybackFilePrefix+"*.json"))
	if err != nil {
		return nil, services.Wrap(services.ErrStructural, "download", "scan playback data", "", err)
	}
	if latest == "" {
		return nil, services.Wrap(services.ErrNotFound, "download", "load playback data", "no playback data; run resolve first", nil)
	}
	var items []scrape.ResolvedItem
	if err := fileutil.ReadJSON(latest, &items); err != nil {
		return nil, services.Wrap(services.ErrStructural, "download", "parse playback data", filepath.Base(latest), err)
	}
	d.logger.Info("playback data loaded",
		logging.String("file", filepath.Base(latest)),
		logging.Int("items", len(items)))
	return items, nil
}
