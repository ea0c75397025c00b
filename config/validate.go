package config

import (
	"fmt"
	"strings"

	"revledger/observability/logging"
	"revledger/storage"
)

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendPebble, storage.BackendBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("storage: %s backend requires DataDir", c.StorageBackend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.StorageBackend)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporters are enabled")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: HMACSecret required when auth is enabled")
	}
	return nil
}
