package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is built once at process start and passed into components by
// parameter. Components never re-read files or the environment themselves.
type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	API      APIConfig     `json:"api" yaml:"api"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Ingest   IngestConfig  `json:"ingest" yaml:"ingest"`
	Alerts   AlertsConfig  `json:"alerts" yaml:"alerts"`
}

type APIConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type IngestConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

// AlertsConfig carries the webhook destination and the default thresholds
// used when an alerts request does not override them.
type AlertsConfig struct {
	WebhookURL         string  `json:"webhook_url" yaml:"webhook_url"`
	ZeroRateGT         float64 `json:"zero_rate_gt" yaml:"zero_rate_gt"`
	DetailsErrorRateGT float64 `json:"details_error_rate_gt" yaml:"details_error_rate_gt"`
	MinSearches        int     `json:"min_searches" yaml:"min_searches"`
	MinDetailsRequests int     `json:"min_details_requests" yaml:"min_details_requests"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API: APIConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file:searchwatch.db?_pragma=busy_timeout(5000)",
		},
		Ingest: IngestConfig{
			Kafka: KafkaConfig{Enabled: false},
		},
		Alerts: AlertsConfig{
			ZeroRateGT:         0.5,
			DetailsErrorRateGT: 0.2,
			MinSearches:        20,
			MinDetailsRequests: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.API.MaxBodyBytes <= 0 {
		cfg.API.MaxBodyBytes = 1 << 20
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Alerts.ZeroRateGT <= 0 {
		cfg.Alerts.ZeroRateGT = 0.5
	}
	if cfg.Alerts.DetailsErrorRateGT <= 0 {
		cfg.Alerts.DetailsErrorRateGT = 0.2
	}
	if cfg.Alerts.MinSearches < 0 {
		cfg.Alerts.MinSearches = 20
	}
	if cfg.Alerts.MinDetailsRequests < 0 {
		cfg.Alerts.MinDetailsRequests = 10
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Addr == "" {
		return errors.New("api.addr is required")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Alerts.ZeroRateGT > 1 {
		return errors.New("alerts.zero_rate_gt must be in (0, 1]")
	}
	if cfg.Alerts.DetailsErrorRateGT > 1 {
		return errors.New("alerts.details_error_rate_gt must be in (0, 1]")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	return nil
}
