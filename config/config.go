package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress  string    `toml:"ListenAddress"`
	DataDir        string    `toml:"DataDir"`
	StorageBackend string    `toml:"StorageBackend"`
	Environment    string    `toml:"Environment"`
	Log            Logging   `toml:"log"`
	Telemetry      Telemetry `toml:"telemetry"`
	RPC            RPC       `toml:"rpc"`
	Auth           Auth      `toml:"auth"`
}

// AuthSecretEnv overrides Auth.HMACSecret when set.
const AuthSecretEnv = "REVLEDGER_AUTH_SECRET"


// Load loads the configuration from the given path. A default file is written
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if secret := strings.TrimSpace(os.Getenv(AuthSecretEnv)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	cfg := &Config{
		ListenAddress:  ":8081",
		DataDir:        "./revledger-data",
		StorageBackend: "leveldb",
		Environment:    "local",
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8081"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = "leveldb"
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.RPC.ReadHeaderTimeout <= 0 {
		c.RPC.ReadHeaderTimeout = 5
	}
	if c.RPC.ReadTimeout <= 0 {
		c.RPC.ReadTimeout = 15
	}
	if c.RPC.WriteTimeout <= 0 {
		c.RPC.WriteTimeout = 15
	}
	if c.RPC.IdleTimeout <= 0 {
		c.RPC.IdleTimeout = 60
	}
	if c.RPC.ShutdownTimeout <= 0 {
		c.RPC.ShutdownTimeout = 10
	}
	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 120
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }
