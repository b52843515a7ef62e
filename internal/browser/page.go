package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Page drives the single shared browser tab.
type Page struct {
	ctx        context.Context
	navTimeout time.Duration
}

// Matcher is one entry of an ordered selector fallback list. Keeping these
// data-driven lets new markup variants be added without touching control flow.
type Matcher struct {
	Desc  string
	Query string
	Opts  []chromedp.QueryOption
}

// CSS builds a Matcher for a CSS selector.
func CSS(desc, query string) Matcher {
	return Matcher{Desc: desc, Query: query, Opts: []chromedp.QueryOption{chromedp.ByQuery}}
}

// XPath builds a Matcher for an XPath expression.
func XPath(desc, query string) Matcher {
	return Matcher{Desc: desc, Query: query, Opts: []chromedp.QueryOption{chromedp.BySearch}}
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := p.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeNavFailed
	}
}

// Navigate loads url and waits for the document body, bounded by the
// configured navigation timeout.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Reload forces a reload of the current page.
func (p *Page) Reload(ctx context.Context) error {
	return p.run(ctx, p.navTimeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL returns the tab's current location.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, 10*time.Second, chromedp.Location(&url))
	return url, err
}

// Title returns the current document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, 10*time.Second, chromedp.Title(&title))
	return title, err
}

// Evaluate runs a script against the page and unmarshals its result into out.
func (p *Page) Evaluate(ctx context.Context, js string, out any) error {
	return p.run(ctx, p.navTimeout, chromedp.Evaluate(js, out))
}

// WaitVisible waits for sel to become visible within timeout.
func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) Outcome {
	return classify(p.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery)))
}

// SendKeys types value into the first element matching sel.
func (p *Page) SendKeys(ctx context.Context, sel, value string) error {
	return p.run(ctx, 10*time.Second, chromedp.SendKeys(sel, value, chromedp.ByQuery))
}

// Clear empties the first element matching sel.
func (p *Page) Clear(ctx context.Context, sel string) error {
	return p.run(ctx, 10*time.Second, chromedp.Clear(sel, chromedp.ByQuery))
}

// PressEnter submits by sending the Enter key to sel.
func (p *Page) PressEnter(ctx context.Context, sel string) error {
	return p.run(ctx, 10*time.Second, chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery))
}

// ClickFirst walks the matcher list in order and clicks the first one that
// resolves within perMatcher. OutcomeNotFound means no matcher applied.
func (p *Page) ClickFirst(ctx context.Context, matchers []Matcher, perMatcher time.Duration) (Matcher, Outcome) {
	for _, m := range matchers {
		opts := append([]chromedp.QueryOption{}, m.Opts...)
		err := p.run(ctx, perMatcher, chromedp.Click(m.Query, opts...))
		switch classify(err) {
		case OutcomeOK:
			return m, OutcomeOK
		case OutcomeNavFailed:
			// A click that lands mid-navigation can report failure even
			// though it applied; let the caller's URL checks decide.
			return m, OutcomeNavFailed
		}
	}
	return Matcher{}, OutcomeNotFound
}

// PollURLStable polls the tab's location until it reports the same value for
// consecutive checks, or the timeout expires. The multi-hop identity-provider
// redirect chain offers no reliable completion signal, so stability is the
// best available proxy.
func (p *Page) PollURLStable(ctx context.Context, interval time.Duration, consecutive int, timeout time.Duration) (string, Outcome) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if consecutive < 2 {
		consecutive = 2
	}
	deadline := time.Now().Add(timeout)
	var last string
	seen := 0
	for {
		url, err := p.CurrentURL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, OutcomeTimeout
			}
			return last, OutcomeNavFailed
		}
		if url == last && url != "" {
			seen++
			if seen >= consecutive {
				return url, OutcomeOK
			}
		} else {
			last = url
			seen = 1
		}
		if time.Now().After(deadline) {
			return last, OutcomeTimeout
		}
		select {
		case <-ctx.Done():
			return last, OutcomeTimeout
		case <-time.After(interval):
		}
	}
}
