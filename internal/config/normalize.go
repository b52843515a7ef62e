package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePortal()
	c.normalizeBrowser()
	c.normalizeDownload()
	c.normalizeTranscode()
	c.normalizeLogging()
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaultTimezone
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.MergedDir, err = expandPath(c.Paths.MergedDir); err != nil {
		return fmt.Errorf("paths.merged_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePortal() {
	if value, ok := os.LookupEnv(EnvCourseURL); ok && strings.TrimSpace(value) != "" {
		c.Portal.CourseURL = value
	}
	if value, ok := os.LookupEnv(EnvFilter); ok {
		c.Portal.Filter = value
	}
	c.Portal.CourseURL = strings.TrimSpace(c.Portal.CourseURL)
	c.Portal.TargetHost = strings.TrimSpace(c.Portal.TargetHost)
	c.Portal.IdentityHost = strings.TrimSpace(c.Portal.IdentityHost)
	if c.Portal.TargetHost == "" {
		c.Portal.TargetHost = defaultTargetHost
	}
	if c.Portal.IdentityHost == "" {
		c.Portal.IdentityHost = defaultIdentityHost
	}
	if c.Portal.ProbeTimeoutSeconds <= 0 {
		c.Portal.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Portal.SettleSeconds <= 0 {
		c.Portal.SettleSeconds = defaultSettleSeconds
	}
	if c.Portal.RedirectTimeoutSeconds <= 0 {
		c.Portal.RedirectTimeoutSeconds = defaultRedirectTimeoutSeconds
	}
}

func (c *Config) normalizeBrowser() {
	if c.Browser.NavTimeoutSeconds <= 0 {
		c.Browser.NavTimeoutSeconds = defaultNavTimeoutSeconds
	}
	if c.Browser.MediaWaitSeconds <= 0 {
		c.Browser.MediaWaitSeconds = defaultMediaWaitSeconds
	}
	if c.Browser.StabilitySeconds <= 0 {
		c.Browser.StabilitySeconds = defaultStabilitySeconds
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.TransferTimeoutMinutes <= 0 {
		c.Download.TransferTimeoutMinutes = defaultTransferTimeoutMinutes
	}
}

func (c *Config) normalizeTranscode() {
	if strings.TrimSpace(c.Transcode.FFmpegBinary) == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transcode.Preset) == "" {
		c.Transcode.Preset = defaultPreset
	}
	if c.Transcode.CRF <= 0 {
		c.Transcode.CRF = defaultCRF
	}
	if c.Transcode.ScaleWidth <= 0 {
		c.Transcode.ScaleWidth = defaultScaleWidth
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
