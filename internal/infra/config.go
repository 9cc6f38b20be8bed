package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive or per-machine
// values can be overridden through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Gateway struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		ClientID int    `yaml:"client_id"`
		// WSURL overrides host/port with a full websocket URL. Used by
		// tests pointed at an in-process gateway.
		WSURL string `yaml:"ws_url"`
	} `yaml:"gateway"`

	Storage struct {
		// One store instance per database file. Two processes must not
		// both reconcile against the same file; that constraint is a
		// deployment rule, not enforced here.
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`

	Watch struct {
		PollIntervalMS    int `yaml:"poll_interval_ms"`
		DefaultMaxWaitSec int `yaml:"default_max_wait_sec"`
	} `yaml:"watch"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, then applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a usable configuration without a config file,
// relying on defaults plus environment overrides.
func DefaultConfig() *Config {
	var cfg Config
	applyDefaults(&cfg)
	overrideWithEnv(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 7497
	}
	if cfg.Gateway.ClientID == 0 {
		cfg.Gateway.ClientID = 7
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "data/orders.db"
	}
	if cfg.Watch.PollIntervalMS == 0 {
		cfg.Watch.PollIntervalMS = 1000
	}
	if cfg.Watch.DefaultMaxWaitSec == 0 {
		cfg.Watch.DefaultMaxWaitSec = 300
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Gateway.WSURL == "" {
		if c.Gateway.Host == "" {
			return fmt.Errorf("gateway host is required")
		}
		if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
			return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
		}
	} else if !hasPrefix(c.Gateway.WSURL, "ws://") && !hasPrefix(c.Gateway.WSURL, "wss://") {
		return fmt.Errorf("invalid gateway WS URL: %s", c.Gateway.WSURL)
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path is required")
	}
	if c.Watch.PollIntervalMS <= 0 {
		return fmt.Errorf("watch poll interval must be positive")
	}
	if c.Watch.DefaultMaxWaitSec <= 0 {
		return fmt.Errorf("watch default max wait must be positive")
	}

	return nil
}

// GatewayURL is the websocket endpoint the session dials.
func (c *Config) GatewayURL() string {
	if c.Gateway.WSURL != "" {
		return c.Gateway.WSURL
	}
	return fmt.Sprintf("ws://%s:%d/v1/api", c.Gateway.Host, c.Gateway.Port)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over the loaded values.
func overrideWithEnv(cfg *Config) {
	if host := os.Getenv("IB_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("IB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if id := os.Getenv("IB_CLIENT_ID"); id != "" {
		if v, err := strconv.Atoi(id); err == nil {
			cfg.Gateway.ClientID = v
		}
	}
	if path := os.Getenv("ORDER_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
}
