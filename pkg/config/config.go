package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Terminal struct {
		BridgeURL      string        `yaml:"bridge_url"`
		Path           string        `yaml:"path"`
		Login          int64         `yaml:"login"`
		Password       string        `yaml:"password"`
		Server         string        `yaml:"server"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		CallTimeout    time.Duration `yaml:"call_timeout"`
		BusyTimeout    time.Duration `yaml:"busy_timeout"`
		InitOnBoot     bool          `yaml:"init_on_boot"`
	} `yaml:"terminal"`
	Delta struct {
		Manual          string        `yaml:"manual"`
		ReferenceSymbol string        `yaml:"reference_symbol"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"delta"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend"` // memory or redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Archive struct {
		Backend string `yaml:"backend"` // none, kafka, clickhouse
		Kafka   struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic"`
			Compression  string        `yaml:"compression"`
			RequiredAcks int           `yaml:"required_acks"`
			BatchSize    int           `yaml:"batch_size"`
			Linger       time.Duration `yaml:"linger"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			MaxAttempts  int           `yaml:"max_attempts"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Host        string        `yaml:"host"`
			Port        int           `yaml:"port"`
			Database    string        `yaml:"database"`
			Table       string        `yaml:"table"`
			User        string        `yaml:"user"`
			Password    string        `yaml:"password"`
			DialTimeout time.Duration `yaml:"dial_timeout"`
			ReadTimeout time.Duration `yaml:"read_timeout"`
		} `yaml:"clickhouse"`
	} `yaml:"archive"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TERMINAL_BRIDGE_URL"); v != "" {
		c.Terminal.BridgeURL = v
	}
	if v := os.Getenv("TERMINAL_PATH"); v != "" {
		c.Terminal.Path = v
	}
	if v := os.Getenv("TERMINAL_LOGIN"); v != "" {
		login, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TERMINAL_LOGIN must be numeric: %w", err)
		}
		c.Terminal.Login = login
	}
	if v := os.Getenv("TERMINAL_PASSWORD"); v != "" {
		c.Terminal.Password = v
	}
	if v := os.Getenv("TERMINAL_SERVER"); v != "" {
		c.Terminal.Server = v
	}
	if v := os.Getenv("DELTA_MANUAL"); v != "" {
		c.Delta.Manual = v
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Archive.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Delta.ReferenceSymbol == "" {
		c.Delta.ReferenceSymbol = "XAUUSD"
	}
	if c.Delta.RefreshInterval == 0 {
		c.Delta.RefreshInterval = 5 * time.Minute
	}
	if c.Terminal.ConnectTimeout == 0 {
		c.Terminal.ConnectTimeout = 10 * time.Second
	}
	if c.Terminal.CallTimeout == 0 {
		c.Terminal.CallTimeout = 15 * time.Second
	}
	if c.Terminal.BusyTimeout == 0 {
		c.Terminal.BusyTimeout = 20 * time.Second
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Second
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = "none"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Terminal.BridgeURL == "" {
		return fmt.Errorf("terminal.bridge_url is required")
	}
	switch c.Archive.Backend {
	case "none", "kafka", "clickhouse":
	default:
		return fmt.Errorf("archive.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Archive.Backend)
	}
	if c.Archive.Backend == "kafka" && len(c.Archive.Kafka.Brokers) == 0 {
		return fmt.Errorf("archive.kafka.brokers cannot be empty")
	}
	if c.Archive.Backend == "clickhouse" && c.Archive.ClickHouse.Host == "" {
		return fmt.Errorf("archive.clickhouse.host is required")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	return nil
}
