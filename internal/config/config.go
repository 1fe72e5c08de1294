package config

import (
	"errors"
	"os"
)

// Config holds the server's environment-driven settings.
type Config struct {
	Port      string
	RedisAddr string // empty disables the cross-instance backplane
	LogLevel  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	}
	return errors.New("unsupported log level: " + cfg.LogLevel)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
