package config

import (
	"strings"

	"go.uber.org/zap"
)

// LogConfigurationSummary returns the effective configuration as zap fields
// for the startup log. Secrets are reported as configured/not-configured;
// the postgres URL is reduced to its host.
func (c *Config) LogConfigurationSummary() []zap.Field {
	configPath := c.configFilePath
	if configPath == "" {
		configPath = "none (defaults and environment)"
	}

	return []zap.Field{
		zap.String("service", c.Service),
		zap.String("config_file", configPath),
		zap.String("log_level", c.LogLevel),
		zap.String("gin_mode", c.GinMode),

		zap.String("host", c.Host),
		zap.Int("port", c.Port),
		zap.String("base_url", c.BaseURL),
		zap.Int64("max_body_bytes", c.MaxBodyBytes),

		zap.Int("queue_concurrency", c.QueueConcurrency),
		zap.Int("queue_max_retries", c.QueueMaxRetries),

		zap.Bool("postgres_configured", c.PostgresURL != ""),
		zap.String("postgres_host", postgresURLHost(c.PostgresURL)),
		zap.String("redis_host", c.Redis.Host),
		zap.Int("redis_port", c.Redis.Port),
		zap.Bool("redis_password_configured", c.Redis.Password != ""),
		zap.Int("redis_database", c.Redis.Database),
	}
}

// postgresURLHost extracts the host:port from a postgres URL, dropping
// credentials, database name, and parameters.
func postgresURLHost(url string) string {
	if url == "" {
		return ""
	}

	rest := url
	if idx := strings.Index(rest, "@"); idx != -1 {
		rest = rest[idx+1:]
	} else if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?"); idx != -1 {
		rest = rest[:idx]
	}
	return rest
}
