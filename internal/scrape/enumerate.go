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
	"aulagrab/internal/logging"
	"aulagrab/internal/services"
	"aulagrab/internal/stagecache"
	"aulagrab/internal/textutil"
)

// ModuleListFile is the enumerate stage's first output.
const ModuleListFile = "moduleLinks.json"

// Enumerator collects module links from the course page and the recording
// rows of every matching module. It always re-scrapes: the course listing is
// the one upstream source that can change between runs.
type Enumerator struct {
	source    PageSource
	dir       string
	courseURL string
	baseURL   string
	filter    string
	tableWait time.Duration
	logger    *slog.Logger
}

// NewEnumerator wires the stage. dir is the shard-resolved data directory.
func NewEnumerator(source PageSource, cfg *config.Config, dir string, logger *slog.Logger) *Enumerator {
	return &Enumerator{
		source:    source,
		dir:       dir,
		courseURL: cfg.Portal.CourseURL,
		baseURL:   "https://" + cfg.Portal.TargetHost,
		filter:    cfg.Portal.Filter,
		tableWait: time.Duration(cfg.Browser.MediaWaitSeconds) * time.Second,
		logger:    logging.NewComponentLogger(logger, "enumerate"),
	}
}

// Run scrapes the course page and every matching module. A module whose
// recordings table cannot be read is a per-item failure; only losing the
// browser or the course page aborts the stage.
func (e *Enumerator) Run(ctx context.Context) (stagecache.Stats, error) {
	var stats stagecache.Stats

	pg, err := e.source.Page(ctx)
	if err != nil {
		return stats, services.Wrap(services.ErrStructural, "enumerate", "acquire page", "browser session unavailable", err)
	}

	modules, err := e.collectModules(ctx, pg)
	if err != nil {
		return stats, err
	}

	list := stagecache.New[ModuleList](filepath.Join(e.dir, ModuleListFile))
	if err := list.Store(ModuleList{Modules: modules}); err != nil {
		return stats, services.Wrap(services.ErrStructural, "enumerate", "persist modules", "", err)
	}
	e.logger.Info("module links collected", logging.Int("count", len(modules)))

	matched := e.matchModules(modules)
	if len(matched) == 0 {
		// Zero matches is an empty result, not an error.
		e.logger.Warn("no modules matched", logging.String("filter", e.filter))
		return stats, nil
	}

	for i, mod := range matched {
		if err := e.scrapeModule(ctx, pg, i+1, mod); err != nil {
			stats.Failed++
			e.logger.Warn("module scrape failed",
				logging.String("module", mod.Text),
				logging.Error(err))
			continue
		}
		stats.Processed++
	}
	return stats, nil
}

// collectModules reads the link anchors off the course page.
func (e *Enumerator) collectModules(ctx context.Context, pg Pager) ([]Module, error) {
	// The login flow may have parked the tab elsewhere; force the course page.
	if url, err := pg.CurrentURL(ctx); err != nil || url != e.courseURL {
		if err := pg.Navigate(ctx, e.courseURL); err != nil {
			return nil, services.Wrap(services.ErrStructural, "enumerate", "navigate", e.courseURL, err)
		}
	}

	var modules []Module
	if err := pg.Evaluate(ctx, moduleAnchorsJS, &modules); err != nil {
		return nil, services.Wrap(services.ErrStructural, "enumerate", "collect links", "", err)
	}
	return modules, nil
}

// matchModules applies the filter (case-insensitive substring on the link
// text) and drops duplicate links, keeping first occurrence order.
func (e *Enumerator) matchModules(modules []Module) []Module {
	matched := modules
	if e.filter != "" {
		needle := strings.ToLower(e.filter)
		filtered := make([]Module, 0, len(modules))
		for _, m := range modules {
			if strings.Contains(strings.ToLower(m.Text), needle) {
				filtered = append(filtered, m)
			}
		}
		matched = filtered
	}
	return stagecache.DedupBy(matched, func(m Module) string { return m.Link })
}

// scrapeModule reads one module's recordings table and persists the rows.
func (e *Enumerator) scrapeModule(ctx context.Context, pg Pager, ordinal int, mod Module) error {
	e.logger.Info("scraping module",
		logging.Int("ordinal", ordinal),
		logging.String("module", mod.Text))

	if err := pg.Navigate(ctx, mod.Link); err != nil {
		return fmt.Errorf("navigate %s: %w", mod.Link, err)
	}
	if outcome := pg.WaitVisible(ctx, recordingsTableSel, e.tableWait); outcome != browser.OutcomeOK {
		// The table renders lazily on some themes; the row extraction below
		// still sees whatever attached, so this is informational only.
		e.logger.Debug("recordings table not visible",
			logging.String("outcome", outcome.String()))
	}

	var rows []struct {
		Name string `json:"name"`
		Link string `json:"link"`
	}
	if err := pg.Evaluate(ctx, recordingRowsJS, &rows); err != nil {
		return fmt.Errorf("extract rows: %w", err)
	}

	recordings := make([]Recording, 0, len(rows))
	for _, row := range rows {
		recordings = append(recordings, Recording{
			Name:         row.Name,
			Type:         "Presentation",
			PlaybackLink: e.absolutize(row.Link),
		})
	}
	e.logger.Info("recordings extracted", logging.Int("count", len(recordings)))

	out := stagecache.New[SessionFile](filepath.Join(e.dir, sessionFileName(ordinal, mod.Text)))
	return out.Store(SessionFile{BBBSession: SessionBody{Recordings: recordings}})
}

func (e *Enumerator) absolutize(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	return e.baseURL + link
}

func sessionFileName(ordinal int, text string) string {
	return fmt.Sprintf("session_%d_%s.json", ordinal, textutil.SanitizeShard(text))
}
