// Package config provides configuration for the codeset server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Listen is the address to listen on (e.g., ":7448").
	Listen string
	// DataDir is the root directory for database files.
	DataDir string
	// HierarchyDir is where hierarchy definition files live.
	HierarchyDir string
	// MaxBatchSize is the maximum number of updates accepted per request.
	MaxBatchSize int
	// Version is the server version string.
	Version string
	// Debug enables debug logging.
	Debug bool
	// RequestTimeout bounds request handling time.
	RequestTimeout time.Duration
}

// FromEnv creates a Config from environment variables.
func FromEnv() *Config {
	return &Config{
		Listen:         getEnv("CODESET_LISTEN", ":7448"),
		DataDir:        getEnv("CODESET_DATA", "./data"),
		HierarchyDir:   getEnv("CODESET_HIERARCHIES", "./hierarchies"),
		MaxBatchSize:   getEnvInt("CODESET_MAX_BATCH", 10000),
		Version:        getEnv("CODESET_VERSION", "0.1.0"),
		Debug:          getEnvBool("CODESET_DEBUG", false),
		RequestTimeout: getEnvDuration("CODESET_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
