// Package merge implements the final pipeline stage: for every recording
// whose desktop-share and webcam components are both on disk, it invokes
// ffmpeg to produce one H.264/AAC file with the webcam overlaid
// picture-in-picture. The merged file's existence is the terminal
// idempotence gate for the whole pipeline.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aulagrab/internal/artifactkey"
	"aulagrab/internal/config"
	"aulagrab/internal/logging"
	"aulagrab/internal/services"
	"aulagrab/internal/stagecache"
)

// Merger drives the per-key ffmpeg invocations.
type Merger struct {
	transcoder  *Transcoder
	downloadDir string
	mergedDir   string
	logger      *slog.Logger
}

// New wires the stage over shard-resolved component and output directories.
func New(cfg *config.Config, downloadDir, mergedDir string, logger *slog.Logger, opts ...Option) (*Merger, error) {
	transcoder, err := NewTranscoder(
		cfg.Transcode.FFmpegBinary,
		cfg.Transcode.Preset,
		cfg.Transcode.CRF,
		cfg.Transcode.ScaleWidth,
		opts...,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "merge", "transcoder", "", err)
	}
	return &Merger{
		transcoder:  transcoder,
		downloadDir: downloadDir,
		mergedDir:   mergedDir,
		logger:      logging.NewComponentLogger(logger, "merge"),
	}, nil
}

// Run merges every key with both components present. A failed ffmpeg run is
// recorded against its key and the batch continues.
func (m *Merger) Run(ctx context.Context) (stagecache.Stats, error) {
	var stats stagecache.Stats

	keys, err := m.mergeableKeys()
	if err != nil {
		return stats, err
	}
	if len(keys) == 0 {
		m.logger.Info("no component pairs to merge")
		return stats, nil
	}
	if err := os.MkdirAll(m.mergedDir, 0o755); err != nil {
		return stats, services.Wrap(services.ErrStructural, "merge", "prepare directory", m.mergedDir, err)
	}

	for _, key := range keys {
		output := filepath.Join(m.mergedDir, artifactkey.MergedFile(key))
		if _, err := os.Stat(output); err == nil {
			stats.Skipped++
			m.logger.Debug("already merged", logging.String("key", key))
			continue
		}
		if err := m.mergeKey(ctx, key, output); err != nil {
			stats.Failed++
			m.logger.Warn("merge failed",
				logging.String("key", key),
				logging.Error(err))
			continue
		}
		stats.Processed++
		m.logger.Info("merged", logging.String("file", filepath.Base(output)))
	}
	return stats, nil
}

// mergeKey runs one ffmpeg invocation. The output is written to a working
// name and renamed on success so the final path never holds a partial file.
func (m *Merger) mergeKey(ctx context.Context, key, output string) error {
	deskshare := filepath.Join(m.downloadDir, artifactkey.ComponentFile(key, "deskshare"))
	webcams := filepath.Join(m.downloadDir, artifactkey.ComponentFile(key, "webcams"))
	working := filepath.Join(m.mergedDir, key+"_working.mp4")
	defer os.Remove(working)

	err := m.transcoder.Merge(ctx, deskshare, webcams, working, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			m.logger.Debug("ffmpeg", logging.String("line", line))
		}
	})
	if err != nil {
		return fmt.Errorf("transcode %s: %w", key, err)
	}
	if err := os.Rename(working, output); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// mergeableKeys scans the download directory for keys carrying both the
// desktop-share and webcam components, in sorted key order.
func (m *Merger) mergeableKeys() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.downloadDir, "*_deskshare.webm"))
	if err != nil {
		return nil, services.Wrap(services.ErrStructural, "merge", "scan components", "", err)
	}

	var keys []string
	for _, desk := range matches {
		key := strings.TrimSuffix(filepath.Base(desk), "_deskshare.webm")
		webcams := filepath.Join(m.downloadDir, artifactkey.ComponentFile(key, "webcams"))
		if _, err := os.Stat(webcams); err != nil {
			m.logger.Debug("webcam component missing; skipping", logging.String("key", key))
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
