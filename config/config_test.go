package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "leveldb" || cfg.ListenAddress != ":8081" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.DataDir != cfg.DataDir || again.RPC.IdleTimeout != cfg.RPC.IdleTimeout {
		t.Fatalf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadParsesSections(t *testing.T) {
	path := writeConfig(t, `ListenAddress = "127.0.0.1:9100"
DataDir = "/var/lib/revledger"
StorageBackend = "Pebble"
Environment = "staging"

[log]
Level = "debug"
File = "/var/log/revshared.log"
MaxSizeMB = 50

[telemetry]
Endpoint = "otel:4318"
Insecure = true
Traces = true
Headers = "api-key=abc"
SampleRatio = 0.25

[rpc]
ReadTimeout = 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "pebble" {
		t.Fatalf("backend should be normalised, got %q", cfg.StorageBackend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxSizeMB != 50 {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if cfg.RPC.ReadTimeoutDuration() != 30*time.Second || cfg.RPC.WriteTimeoutDuration() != 15*time.Second {
		t.Fatalf("unexpected rpc timeouts %+v", cfg.RPC)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv(AuthSecretEnv, "")
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{"unknown backend", `StorageBackend = "rocks"`, "unknown backend"},
		{"missing data dir", "StorageBackend = \"bolt\"\nDataDir = \"\"", "requires DataDir"},
		{"bad level", "StorageBackend = \"memory\"\n[log]\nLevel = \"loud\"", "unknown level"},
		{"bad ratio", "StorageBackend = \"memory\"\n[telemetry]\nSampleRatio = 2.0", "SampleRatio"},
		{"exporter without endpoint", "StorageBackend = \"memory\"\n[telemetry]\nMetrics = true", "Endpoint required"},
		{"unknown key", "StorageBackend = \"memory\"\nBogus = 1", "unknown keys"},
		{"auth without secret", "StorageBackend = \"memory\"\n[auth]\nEnabled = true", "HMACSecret required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadAuthSecretFromEnv(t *testing.T) {
	path := writeConfig(t, `StorageBackend = "memory"

[auth]
Enabled = true
Issuer = "revledger-auth"
`)
	t.Setenv(AuthSecretEnv, "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.HMACSecret != "from-env" || cfg.Auth.Issuer != "revledger-auth" {
		t.Fatalf("unexpected auth section %+v", cfg.Auth)
	}
	if cfg.Auth.ClockSkewDuration() != 2*time.Minute {
		t.Fatalf("unexpected clock skew %v", cfg.Auth.ClockSkewDuration())
	}
}
