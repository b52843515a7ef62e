package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment variable names recognized at load time. RUN and PASSWORD are
// the two-hop login credentials; COURSE_URL and FILTER override their config
// file counterparts.
const (
	EnvRun       = "AULAGRAB_RUN"
	EnvPassword  = "AULAGRAB_PASSWORD"
	EnvCourseURL = "AULAGRAB_COURSE_URL"
	EnvFilter    = "AULAGRAB_FILTER"
)

// Paths contains directory configuration. Stage outputs, downloads, and
// merged files each live under their own root so every stage owns its own
// namespace.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	DownloadDir string `toml:"download_dir"`
	MergedDir   string `toml:"merged_dir"`
	LogDir      string `toml:"log_dir"`
}

// Portal describes the learning platform and its two-hop login flow.
type Portal struct {
	CourseURL    string `toml:"course_url"`
	TargetHost   string `toml:"target_host"`
	IdentityHost string `toml:"identity_host"`
	Filter       string `toml:"filter"`
	// ProbeTimeout bounds the wait for each login hop's form fields.
	ProbeTimeoutSeconds int `toml:"probe_timeout"`
	// SettleSeconds covers client-side validation round-trips that expose no
	// observable DOM condition.
	SettleSeconds int `toml:"settle_seconds"`
	// RedirectTimeoutSeconds bounds the URL-stability poll after the identity
	// provider submit.
	RedirectTimeoutSeconds int `toml:"redirect_timeout"`
}

// Browser configures the shared automation session.
type Browser struct {
	Headless          bool `toml:"headless"`
	NavTimeoutSeconds int  `toml:"nav_timeout"`
	MediaWaitSeconds  int  `toml:"media_wait"`
	StabilitySeconds  int  `toml:"stability_wait"`
}

// Download configures the media transfer stage.
type Download struct {
	// TransferTimeoutMinutes caps one component transfer end to end. Recording
	// components run to hundreds of megabytes on slow links.
	TransferTimeoutMinutes int `toml:"transfer_timeout"`
}

// Transcode configures the external merge process.
type Transcode struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Preset       string `toml:"preset"`
	CRF          int    `toml:"crf"`
	ScaleWidth   int    `toml:"scale_width"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for aulagrab.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Portal    Portal    `toml:"portal"`
	Browser   Browser   `toml:"browser"`
	Download  Download  `toml:"download"`
	Transcode Transcode `toml:"transcode"`
	Logging   Logging   `toml:"logging"`
	// Timezone pins artifact key derivation to a fixed zone so keys never
	// depend on the machine's ambient locale.
	Timezone string `toml:"timezone"`
}

// Credentials holds the login identity for the two-hop flow. Never persisted.
type Credentials struct {
	Run      string
	Password string
}

// Empty reports whether the login hops should be skipped.
func (c Credentials) Empty() bool {
	return c.Run == "" || c.Password == ""
}

// Credentials reads the login identity from the environment. Dots in the RUN
// identifier are stripped, matching what the portal's input field expects.
func (c *Config) Credentials() Credentials {
	return Credentials{
		Run:      strings.ReplaceAll(strings.TrimSpace(os.Getenv(EnvRun)), ".", ""),
		Password: os.Getenv(EnvPassword),
	}
}

// ShardDir returns the shard subdirectory under base for the configured
// filter, or base itself when no filter is set. The sanitized name is
// computed by the caller to avoid an import cycle with textutil.
func ShardDir(base, shard string) string {
	if shard == "" {
		return base
	}
	return filepath.Join(base, shard)
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aulagrab/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and env overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("aulagrab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.DownloadDir, c.Paths.MergedDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
