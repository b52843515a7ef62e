package scrape

// Module is one course-page link to a recordings listing.
type Module struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

// ModuleList is the persisted output of the enumerate stage.
type ModuleList struct {
	Modules []Module `json:"modules"`
}

// Recording is one row of a module's recordings table. PlaybackLink is the
// identity: the name text is re-derived on every scrape, the link is stable.
type Recording struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PlaybackLink string `json:"playback_link"`
}

// SessionFile wraps the recordings extracted from one module page.
type SessionFile struct {
	BBBSession SessionBody `json:"bbb_session"`
}

// SessionBody holds the recording rows.
type SessionBody struct {
	Recordings []Recording `json:"recordings"`
}

// MediaContent is the media inventory extracted from a playback page.
type MediaContent struct {
	Videos     []string `json:"videos"`
	Audios     []string `json:"audios"`
	SlideCount int      `json:"slide_count"`
}

// ResolvedItem is a recording enriched with its playback media. Items are
// only ever persisted with at least one video URL; a zero-media extraction is
// a retryable miss, not a result.
type ResolvedItem struct {
	Recording
	RealPlaybackURL string       `json:"realPlaybackUrl"`
	Content         MediaContent `json:"scraped_content"`
}
