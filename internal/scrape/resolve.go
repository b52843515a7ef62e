package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"aulagrab/internal/browser"
	"aulagrab/internal/config"
	"aulagrab/internal/fileutil"
	"aulagrab/internal/logging"
	"aulagrab/internal/services"
	"aulagrab/internal/session"
	"aulagrab/internal/stagecache"
)

// PlaybackFilePrefix names the resolve stage's timestamped output files.
const PlaybackFilePrefix = "playback_data_"

// Resolver visits each recording's playback page and inventories its media.
// Items already present in the latest prior output with a non-empty video
// list are copied forward byte-for-byte; the browser only starts when
// uncached items remain.
type Resolver struct {
	source    PageSource
	dir       string
	mediaWait time.Duration
	stability time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewResolver wires the stage. dir is the shard-resolved data directory
// holding both the session files and the playback outputs.
func NewResolver(source PageSource, cfg *config.Config, dir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		source:    source,
		dir:       dir,
		mediaWait: time.Duration(cfg.Browser.MediaWaitSeconds) * time.Second,
		stability: time.Duration(cfg.Browser.StabilitySeconds) * time.Second,
		logger:    logging.NewComponentLogger(logger, "resolve"),
		now:       time.Now,
	}
}

// Run resolves every recording found in the session files. Per-item scrape
// failures are logged and counted; the stage only aborts when its inputs are
// missing or the browser cannot be acquired.
func (r *Resolver) Run(ctx context.Context) (stagecache.Stats, error) {
	var stats stagecache.Stats

	recordings, err := r.loadRecordings()
	if err != nil {
		return stats, err
	}
	if len(recordings) == 0 {
		r.logger.Warn("no recordings to resolve")
		return stats, nil
	}

	cached, err := r.loadCache()
	if err != nil {
		return stats, err
	}

	pending := 0
	for _, rec := range recordings {
		if _, ok := cached[rec.PlaybackLink]; !ok {
			pending++
		}
	}
	r.logger.Info("resolve plan",
		logging.Int("total", len(recordings)),
		logging.Int("cached", len(recordings)-pending),
		logging.Int("pending", pending))

	var pg Pager
	if pending > 0 {
		pg, err = r.source.Page(ctx)
		if err != nil {
			return stats, services.Wrap(services.ErrStructural, "resolve", "acquire page", "browser session unavailable", err)
		}
	}

	resolved := make([]ResolvedItem, 0, len(recordings))
	for _, rec := range recordings {
		if item, ok := cached[rec.PlaybackLink]; ok {
			resolved = append(resolved, item)
			stats.Skipped++
			continue
		}
		item, err := r.resolveOne(ctx, pg, rec)
		if err != nil {
			stats.Failed++
			r.logger.Warn("playback scrape failed",
				logging.String("recording", rec.Name),
				logging.Error(err))
			continue
		}
		if len(item.Content.Videos) == 0 {
			// Not a result: persisting it would poison the cache and stop
			// the next run from retrying.
			stats.Failed++
			r.logger.Warn("no videos found", logging.String("recording", rec.Name))
			continue
		}
		resolved = append(resolved, item)
		stats.Processed++
	}

	out := stagecache.New[[]ResolvedItem](filepath.Join(r.dir, r.outputName()))
	if err := out.Store(resolved); err != nil {
		return stats, services.Wrap(services.ErrStructural, "resolve", "persist results", "", err)
	}
	r.logger.Info("playback data written",
		logging.String("file", filepath.Base(out.Path())),
		logging.Int("items", len(resolved)))
	return stats, nil
}

// loadRecordings reads every session file in the shard directory and dedups
// the rows by playback link, preserving first-occurrence order. The cookie
// file shares the session_ prefix and is excluded by name.
func (r *Resolver) loadRecordings() ([]Recording, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "session_*.json"))
	if err != nil {
		return nil, services.Wrap(services.ErrStructural, "resolve", "scan session files", "", err)
	}

	var all []Recording
	found := 0
	for _, path := range matches {
		if filepath.Base(path) == session.FileName {
			continue
		}
		var file SessionFile
		if err := fileutil.ReadJSON(path, &file); err != nil {
			r.logger.Warn("unreadable session file",
				logging.String("file", filepath.Base(path)),
				logging.Error(err))
			continue
		}
		found++
		all = append(all, file.BBBSession.Recordings...)
	}
	if found == 0 {
		return nil, services.Wrap(services.ErrNotFound, "resolve", "load sessions", "no session files; run enumerate first", nil)
	}
	return stagecache.DedupBy(all, func(rec Recording) string { return rec.PlaybackLink }), nil
}

// loadCache indexes the most recently modified prior output by playback
// link. Only items carrying at least one video URL count as complete.
func (r *Resolver) loadCache() (map[string]ResolvedItem, error) {
	cache := make(map[string]ResolvedItem)
	latest, err := fileutil.LatestByModTime(filepath.Join(r.dir, PlaybackFilePrefix+"*.json"))
	if err != nil || latest == "" {
		return cache, err
	}

	var items []ResolvedItem
	if err := fileutil.ReadJSON(latest, &items); err != nil {
		// A corrupt prior output means a full re-resolve, not an abort.
		r.logger.Warn("unreadable prior output",
			logging.String("file", filepath.Base(latest)),
			logging.Error(err))
		return cache, nil
	}
	for _, item := range items {
		if item.PlaybackLink != "" && len(item.Content.Videos) > 0 {
			cache[item.PlaybackLink] = item
		}
	}
	r.logger.Info("prior output loaded",
		logging.String("file", filepath.Base(latest)),
		logging.Int("items", len(cache)))
	return cache, nil
}

// resolveOne scrapes a single playback page.
func (r *Resolver) resolveOne(ctx context.Context, pg Pager, rec Recording) (ResolvedItem, error) {
	var item ResolvedItem
	if err := pg.Navigate(ctx, rec.PlaybackLink); err != nil {
		return item, fmt.Errorf("navigate: %w", err)
	}
	if outcome := pg.WaitVisible(ctx, mediaElementsSel, r.mediaWait); outcome != browser.OutcomeOK {
		r.logger.Debug("no media elements visible",
			logging.String("recording", rec.Name),
			logging.String("outcome", outcome.String()))
	}
	// The player attaches sources after its own scripts settle; this is the
	// one fixed delay left in the pipeline.
	browser.Settle(ctx, r.stability)

	var content MediaContent
	if err := pg.Evaluate(ctx, mediaSourcesJS, &content); err != nil {
		return item, fmt.Errorf("extract media: %w", err)
	}

	url, err := pg.CurrentURL(ctx)
	if err != nil {
		url = rec.PlaybackLink
	}
	return ResolvedItem{Recording: rec, RealPlaybackURL: url, Content: content}, nil
}

// outputName builds a fresh timestamped file name so prior outputs survive
// as history and the latest-by-mtime selection stays unambiguous.
func (r *Resolver) outputName() string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(r.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	return PlaybackFilePrefix + ts + ".json"
}
