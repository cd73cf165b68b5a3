package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CollectionConfig holds collection and retention configuration
type CollectionConfig struct {
	Project       string        `yaml:"project"`
	HomeWiki      string        `yaml:"home_wiki"`
	MaxLifespan   time.Duration `yaml:"max_lifespan"`
	MaxInactivity time.Duration `yaml:"max_inactivity"`
	MinPurgeTime  time.Duration `yaml:"min_purge_time"`
	MinSpeed      float64       `yaml:"min_speed"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	CollectionID  string        `yaml:"collection_id"`
	NotifyBuffer  int           `yaml:"notify_buffer"`
}

// StreamConfig holds upstream stream client configuration
type StreamConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxReconnectWait time.Duration `yaml:"max_reconnect_wait"`
	StaleAfter       time.Duration `yaml:"stale_after"`
}

// SnapshotConfig holds snapshot store configuration
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds report server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the daemon
type Config struct {
	Collection CollectionConfig `yaml:"collection"`
	Stream     StreamConfig     `yaml:"stream"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every field defaulted, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Collection.Project == "" {
		cfg.Collection.Project = "en.wikipedia.org"
	}
	if cfg.Collection.HomeWiki == "" {
		cfg.Collection.HomeWiki = "enwiki"
	}
	if cfg.Collection.MaxLifespan == 0 {
		cfg.Collection.MaxLifespan = 24 * time.Hour
	}
	if cfg.Collection.MaxInactivity == 0 {
		cfg.Collection.MaxInactivity = 60 * time.Minute
	}
	if cfg.Collection.MinPurgeTime == 0 {
		cfg.Collection.MinPurgeTime = 5 * time.Minute
	}
	if cfg.Collection.MinSpeed == 0 {
		cfg.Collection.MinSpeed = 3
	}
	if cfg.Collection.SweepInterval == 0 {
		cfg.Collection.SweepInterval = 20 * time.Second
	}
	if cfg.Collection.NotifyBuffer == 0 {
		cfg.Collection.NotifyBuffer = 128
	}

	if cfg.Stream.URL == "" {
		cfg.Stream.URL = "wss://stream.wikimedia.org/rc"
	}
	if cfg.Stream.HandshakeTimeout == 0 {
		cfg.Stream.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Stream.MaxReconnectWait == 0 {
		cfg.Stream.MaxReconnectWait = 2 * time.Minute
	}
	if cfg.Stream.StaleAfter == 0 {
		cfg.Stream.StaleAfter = 5 * time.Minute
	}

	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = "./wikipulse.db"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Collection.MinSpeed < 0 {
		return fmt.Errorf("collection.min_speed must not be negative")
	}
	if c.Collection.SweepInterval < time.Second {
		return fmt.Errorf("collection.sweep_interval must be at least one second")
	}
	if c.Collection.MinPurgeTime < 0 || c.Collection.MaxInactivity < 0 || c.Collection.MaxLifespan < 0 {
		return fmt.Errorf("retention durations must not be negative")
	}
	return nil
}
