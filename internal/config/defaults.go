package config

const (
	defaultDataDir     = "~/.local/share/aulagrab/scraped"
	defaultDownloadDir = "~/.local/share/aulagrab/downloads"
	defaultMergedDir   = "~/.local/share/aulagrab/merged"
	defaultLogDir      = "~/.local/share/aulagrab/logs"

	defaultTargetHost   = "auladigital.sence.cl"
	defaultIdentityHost = "claveunica.gob.cl"

	defaultProbeTimeoutSeconds    = 5
	defaultSettleSeconds          = 2
	defaultRedirectTimeoutSeconds = 20
	defaultNavTimeoutSeconds      = 60
	defaultMediaWaitSeconds       = 10
	defaultStabilitySeconds       = 2

	defaultTransferTimeoutMinutes = 30

	defaultFFmpegBinary = "ffmpeg"
	defaultPreset       = "fast"
	defaultCRF          = 28
	defaultScaleWidth   = 1280

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"

	defaultTimezone = "America/Santiago"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			DownloadDir: defaultDownloadDir,
			MergedDir:   defaultMergedDir,
			LogDir:      defaultLogDir,
		},
		Portal: Portal{
			TargetHost:             defaultTargetHost,
			IdentityHost:           defaultIdentityHost,
			ProbeTimeoutSeconds:    defaultProbeTimeoutSeconds,
			SettleSeconds:          defaultSettleSeconds,
			RedirectTimeoutSeconds: defaultRedirectTimeoutSeconds,
		},
		Browser: Browser{
			Headless:          true,
			NavTimeoutSeconds: defaultNavTimeoutSeconds,
			MediaWaitSeconds:  defaultMediaWaitSeconds,
			StabilitySeconds:  defaultStabilitySeconds,
		},
		Download: Download{
			TransferTimeoutMinutes: defaultTransferTimeoutMinutes,
		},
		Transcode: Transcode{
			FFmpegBinary: defaultFFmpegBinary,
			Preset:       defaultPreset,
			CRF:          defaultCRF,
			ScaleWidth:   defaultScaleWidth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Timezone: defaultTimezone,
	}
}
