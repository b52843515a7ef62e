// Package artifactkey derives the deterministic identity string that joins a
// recording across stage outputs and filenames.
//
// A key is the recording's start time rendered as a fixed-width YYYYMMDDHHMM
// string in a pinned zone. Two sources exist: the epoch-millisecond segment
// embedded in a resolved media URL (authoritative) and the locale-formatted
// date inside the recording's display name (fallback for stages that only
// have the listing). Records that yield neither are skipped by callers; no
// synthetic key is ever generated, so differently-dated recordings cannot
// collide.
package artifactkey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	// Embedded zone database so derivation works on hosts without tzdata.
	_ "time/tzdata"
)

// ErrNoTimestamp indicates the input carried no recognizable timestamp.
var ErrNoTimestamp = errors.New("no timestamp found")

const keyLayout = "200601021504"

// labelPattern matches the platform's listing date, e.g. "Mon, 5 Jan 2026, 5:50 PM".
var labelPattern = regexp.MustCompile(`\w{3}, \d{1,2} \w{3} \d{4}, \d{1,2}:\d{2} [AP]M`)

const labelLayout = "Mon, 2 Jan 2006, 3:04 PM"

// urlEpochPattern matches the 13-digit epoch-millisecond segment embedded in
// playback media URLs.
var urlEpochPattern = regexp.MustCompile(`\d{13}`)

// Deriver computes artifact keys in a fixed timezone.
type Deriver struct {
	zone *time.Location
}

// New builds a Deriver pinned to the named zone.
func New(zone string) (*Deriver, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Deriver{zone: loc}, nil
}

// FromLabel extracts the listing date embedded in a recording's display name.
// The date has no zone marker; by policy it is interpreted in the deriver's
// pinned zone, never the process-local one.
func (d *Deriver) FromLabel(label string) (string, error) {
	match := labelPattern.FindString(label)
	if match == "" {
		return "", fmt.Errorf("label %.40q: %w", label, ErrNoTimestamp)
	}
	ts, err := time.ParseInLocation(labelLayout, match, d.zone)
	if err != nil {
		return "", fmt.Errorf("parse label date %q: %w", match, err)
	}
	return ts.Format(keyLayout), nil
}

// FromURL extracts the epoch-millisecond segment of a resolved media URL.
// URL timestamps are authoritative when present: they come from the meeting
// identifier and survive display-name re-derivation.
func (d *Deriver) FromURL(mediaURL string) (string, error) {
	match := urlEpochPattern.FindString(mediaURL)
	if match == "" {
		return "", fmt.Errorf("url %q: %w", mediaURL, ErrNoTimestamp)
	}
	ms, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse epoch %q: %w", match, err)
	}
	return time.UnixMilli(ms).In(d.zone).Format(keyLayout), nil
}

// Derive returns the key for a record, preferring the media URL timestamp and
// falling back to the display name.
func (d *Deriver) Derive(label, mediaURL string) (string, error) {
	if mediaURL != "" {
		if key, err := d.FromURL(mediaURL); err == nil {
			return key, nil
		}
	}
	return d.FromLabel(label)
}
