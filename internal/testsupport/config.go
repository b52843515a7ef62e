package testsupport

import (
	"path/filepath"
	"testing"

	"aulagrab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "scraped")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.MergedDir = filepath.Join(base, "merged")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Portal.CourseURL = "https://auladigital.sence.cl/course/view.php?id=7"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFilter sets the shard filter on the test config.
func WithFilter(filter string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Portal.Filter = filter
	}
}

// WithCourseURL overrides the course page on the test config.
func WithCourseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Portal.CourseURL = url
	}
}
