package config

import "time"

// Logging controls the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// RPC holds HTTP server timeouts in seconds.
type RPC struct {
	ReadHeaderTimeout int `toml:"ReadHeaderTimeout"`
	ReadTimeout       int `toml:"ReadTimeout"`
	WriteTimeout      int `toml:"WriteTimeout"`
	IdleTimeout       int `toml:"IdleTimeout"`
	ShutdownTimeout   int `toml:"ShutdownTimeout"`
}

func (r RPC) ReadHeaderTimeoutDuration() time.Duration { return seconds(r.ReadHeaderTimeout) }
func (r RPC) ReadTimeoutDuration() time.Duration { return seconds(r.ReadTimeout) }
func (r RPC) WriteTimeoutDuration() time.Duration { return seconds(r.WriteTimeout) }
func (r RPC) IdleTimeoutDuration() time.Duration { return seconds(r.IdleTimeout) }
func (r RPC) ShutdownTimeoutDuration() time.Duration { return seconds(r.ShutdownTimeout) }

// Auth configures bearer token verification on the write routes. The secret
// may be supplied through REVLEDGER_AUTH_SECRET instead of the file.
type Auth struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
	ClockSkew  int    `toml:"ClockSkew"`
}

func (a Auth) ClockSkewDuration() time.Duration { return seconds(a.ClockSkew) }
