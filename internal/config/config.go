// Package config provides configuration management for poolsim.
// Service settings come from environment variables with sensible defaults;
// the experiment itself is a JSON file (see Experiment).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service configuration of a poolsim run
type Config struct {
	// Service identification
	ServiceName string
	Version     string
	Environment string

	// Experiment selection
	ExperimentPath string
	ExperimentID   string

	// Run pacing
	ShareRate     float64
	ShareBurst    int
	ProgressEvery uint64

	// Kafka configuration, disabled without brokers
	KafkaBrokers []string

	// ZMQ block notifications, disabled without an address
	ZMQPubAddr string

	// Result export backends, each disabled when unset
	PostgresURL  string
	RedisURL     string
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	LevelDBPath  string

	ExportTimeout time.Duration

	// Read-back of stored runs
	ReportTop    int64
	ReportBlocks int
	ReportRange  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		// Service defaults
		ServiceName: getEnv("SERVICE_NAME", "poolsim"),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Experiment defaults
		ExperimentPath: getEnv("POOLSIM_EXPERIMENT", "experiment.json"),
		ExperimentID:   getEnv("POOLSIM_EXPERIMENT_ID", ""),

		// Pacing defaults, zero rate means as fast as possible
		ShareRate:     getEnvFloat("SHARE_RATE", 0),
		ShareBurst:    getEnvInt("SHARE_BURST", 1000),
		ProgressEvery: getEnvUint("PROGRESS_EVERY", 100000),

		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		ZMQPubAddr:   getEnv("ZMQ_PUB_ADDR", ""),

		PostgresURL:  getEnv("POSTGRES_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "poolsim"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "simulations"),
		LevelDBPath:  getEnv("LEVELDB_PATH", ""),

		ExportTimeout: getEnvDuration("EXPORT_TIMEOUT", 10*time.Second),

		ReportTop:    int64(getEnvInt("REPORT_TOP", 10)),
		ReportBlocks: getEnvInt("REPORT_BLOCKS", 100),
		ReportRange:  getEnvDuration("REPORT_RANGE", 30*24*time.Hour),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate performs basic validation of configuration values
func (c *Config) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME cannot be empty")
	}

	if c.ExperimentPath == "" {
		return fmt.Errorf("POOLSIM_EXPERIMENT cannot be empty")
	}

	if c.ShareRate < 0 {
		return fmt.Errorf("SHARE_RATE must not be negative")
	}

	if c.ShareRate > 0 && c.ShareBurst <= 0 {
		return fmt.Errorf("SHARE_BURST must be positive when SHARE_RATE is set")
	}

	if c.ExportTimeout <= 0 {
		return fmt.Errorf("EXPORT_TIMEOUT must be positive")
	}

	if c.ReportTop <= 0 || c.ReportBlocks <= 0 {
		return fmt.Errorf("REPORT_TOP and REPORT_BLOCKS must be positive")
	}

	if c.ReportRange <= 0 {
		return fmt.Errorf("REPORT_RANGE must be positive")
	}

	if c.InfluxURL != "" && c.InfluxToken == "" {
		return fmt.Errorf("INFLUX_TOKEN is required when INFLUX_URL is set")
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
