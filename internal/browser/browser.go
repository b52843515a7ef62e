package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the shared browser session.
type Options struct {
	Headless   bool
	NavTimeout time.Duration
}

// Browser owns the chromedp allocator and the single shared tab context.
type Browser struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	page        *Page
}

// Launch starts the browser process and opens the shared tab. A failure here
// is structural: nothing in the pipeline can proceed without the engine.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if !opts.Headless {
		execOpts = append(execOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("start-maximized", true),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the browser to actually start so launch failures surface now.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	return &Browser{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		page:        &Page{ctx: tabCtx, navTimeout: navTimeout},
	}, nil
}

// Page returns the single shared tab. Callers must not use it concurrently.
func (b *Browser) Page() *Page {
	return b.page
}

// Close tears down the tab and the browser process.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	b.tabCancel()
	b.allocCancel()
}

// Settle waits for a fixed delay, honoring context cancellation. Used only
// where no observable DOM condition exists (a known brittleness of the
// upstream site's client-side flows).
func Settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
