package config

import (
	"fmt"
	"time"

	// Embedded zone database so timezone validation and key derivation do not
	// depend on host tzdata.
	_ "time/tzdata"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Transcode.CRF > 51 {
		return fmt.Errorf("transcode.crf: %d outside the libx264 range", c.Transcode.CRF)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}
