// Package scrape implements the two page-reading stages of the pipeline:
// enumerate walks the authenticated course page and each module's recordings
// table, resolve visits each playback link and inventories its media. Both
// stages persist their results as JSON files which double as completion
// markers for re-runs.
package scrape

import (
	"context"
	"time"

	"aulagrab/internal/browser"
)

// Pager is the page-reading capability the stages consume. *browser.Page
// satisfies it; tests script it.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) browser.Outcome
	Evaluate(ctx context.Context, js string, out any) error
}

// PageSource lazily supplies an authenticated page. Resolve calls it only
// when uncached items remain, so a fully cached run never opens a browser.
type PageSource interface {
	Page(ctx context.Context) (Pager, error)
}
