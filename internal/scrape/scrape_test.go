package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aulagrab/internal/browser"
)

// fakePager serves canned extraction results keyed by the current URL.
type fakePager struct {
	url     string
	anchors []map[string]string
	rows    map[string][]map[string]string
	media   map[string]MediaContent
	navErr  map[string]error

	navigated []string
}

func (f *fakePager) Navigate(_ context.Context, url string) error {
	if err := f.navErr[url]; err != nil {
		return err
	}
	f.url = url
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakePager) CurrentURL(context.Context) (string, error) { return f.url, nil }

func (f *fakePager) WaitVisible(context.Context, string, time.Duration) browser.Outcome {
	return browser.OutcomeOK
}

func (f *fakePager) Evaluate(_ context.Context, js string, out any) error {
	var payload any
	switch js {
	case moduleAnchorsJS:
		payload = f.anchors
	case recordingRowsJS:
		payload = f.rows[f.url]
	case mediaSourcesJS:
		payload = f.media[f.url]
	default:
		return fmt.Errorf("unexpected script: %.40s", js)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// fakeSource hands out a single pager and counts acquisitions.
type fakeSource struct {
	pg    *fakePager
	err   error
	calls int
}

func (f *fakeSource) Page(context.Context) (Pager, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pg, nil
}

var errBrowserDown = errors.New("browser launch failed")
