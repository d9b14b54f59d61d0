package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Followgraph FollowgraphConfig `yaml:"followgraph"`
}

// FollowgraphConfig is the project configuration.
type FollowgraphConfig struct {
	Hub      HubConfig      `yaml:"hub"`
	Cache    CacheConfig    `yaml:"cache"`
	Queue    QueueConfig    `yaml:"queue"`
	Counts   CountsConfig   `yaml:"counts"`
	Backfill BackfillConfig `yaml:"backfill"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HubConfig controls access to the upstream edge ledger.
type HubConfig struct {
	BaseURL  string            `yaml:"base_url"`
	Timeout  time.Duration     `yaml:"timeout"`
	PageSize int               `yaml:"page_size"`
	Headers  map[string]string `yaml:"headers"`
}

// CacheConfig controls the Redis graph cache.
type CacheConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	FallbackTTL time.Duration `yaml:"fallback_ttl"`
}

// QueueConfig controls the Redis-backed backfill work queue.
type QueueConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// CountsConfig controls the online count strategies.
type CountsConfig struct {
	FastCap      int           `yaml:"fast_cap"`
	FullMaxPages int           `yaml:"full_max_pages"`
	FullDeadline time.Duration `yaml:"full_deadline"`
}

// BackfillConfig controls the scheduled cache repopulation pipeline.
type BackfillConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	Interval  time.Duration `yaml:"interval"`
	Immediate bool          `yaml:"immediate"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
}

// MetricsConfig controls the metrics/admin HTTP listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
