package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/hookfreight/hookfreight/internal/redis"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func getConfigLocations() []string {
	return []string{
		// Relative paths
		".env",
		".hookfreight.yaml",
		"config/hookfreight.yaml",
		"config/hookfreight/config.yaml",
		"config/hookfreight/.env",

		// Container-friendly absolute paths
		"/config/hookfreight.yaml",
		"/config/hookfreight/config.yaml",
		"/config/hookfreight/.env",
	}
}

type Config struct {
	Service  string `yaml:"service" env:"HOOKFREIGHT_SERVICE"`
	LogLevel string `yaml:"log_level" env:"HOOKFREIGHT_LOG_LEVEL"`
	GinMode  string `yaml:"gin_mode" env:"HOOKFREIGHT_GIN_MODE"`

	// HTTP
	Port    int    `yaml:"port" env:"HOOKFREIGHT_PORT"`
	Host    string `yaml:"host" env:"HOOKFREIGHT_HOST"`
	BaseURL string `yaml:"base_url" env:"HOOKFREIGHT_BASE_URL"`

	// Ingest
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"HOOKFREIGHT_MAX_BODY_BYTES"`

	// Delivery queue
	QueueConcurrency int `yaml:"queue_concurrency" env:"HOOKFREIGHT_QUEUE_CONCURRENCY"`
	QueueMaxRetries  int `yaml:"queue_max_retries" env:"HOOKFREIGHT_QUEUE_MAX_RETRIES"`

	// Infrastructure
	PostgresURL string       `yaml:"postgres_url" env:"HOOKFREIGHT_POSTGRES_URL"`
	Redis       *RedisConfig `yaml:"redis"`

	// configFilePath records which config file was loaded, for startup logs.
	// Unexported so neither parser touches it.
	configFilePath string
}

// ConfigFilePath returns the path of the loaded config file, or "" when
// configuration came from defaults and environment only.
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

func (c *Config) initDefaults() {
	c.LogLevel = "info"
	c.GinMode = "release"
	c.Port = 3030
	c.Host = "0.0.0.0"
	c.BaseURL = "http://localhost:3030"
	c.MaxBodyBytes = 1 << 20
	c.QueueConcurrency = 5
	c.QueueMaxRetries = 5
	c.Redis = &RedisConfig{
		Host: "localhost",
		Port: 6379,
	}
}

func (c *Config) parseConfigFile(flagPath string, osInterface OSInterface) error {
	// Get config file path from flag or env
	configPath := flagPath
	if envPath := osInterface.Getenv("CONFIG"); envPath != "" {
		if configPath != "" && configPath != envPath {
			return fmt.Errorf("conflicting config paths: flag=%s env=%s", configPath, envPath)
		}
		configPath = envPath
	}

	// If no explicit config path, try default locations
	if configPath == "" {
		for _, loc := range getConfigLocations() {
			if _, err := osInterface.Stat(loc); err == nil {
				configPath = loc
				break
			}
		}
	}

	if configPath == "" {
		return nil
	}

	data, err := osInterface.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Parse based on file extension
	if strings.HasSuffix(strings.ToLower(configPath), ".env") {
		envMap, err := godotenv.UnmarshalBytes(data)
		if err != nil {
			return fmt.Errorf("error loading .env file: %w", err)
		}
		if err := env.ParseWithOptions(c, env.Options{
			Environment: envMap,
		}); err != nil {
			return fmt.Errorf("error parsing .env file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error parsing yaml config: %w", err)
		}
	}
	c.configFilePath = configPath
	return nil
}

func (c *Config) parseEnvVariables() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("error parsing environment variables: %w", err)
	}
	return nil
}

// Flags carries the command-line values config parsing needs.
type Flags struct {
	Config  string
	Service string
}

func Parse(flags Flags) (*Config, error) {
	return ParseWithOS(flags, defaultOS)
}

func ParseWithOS(flags Flags, osInterface OSInterface) (*Config, error) {
	var config Config

	// Initialize defaults
	config.initDefaults()

	// Parse config file
	if err := config.parseConfigFile(flags.Config, osInterface); err != nil {
		return nil, err
	}

	// Parse environment variables (highest priority)
	if err := config.parseEnvVariables(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(flags); err != nil {
		return nil, err
	}

	return &config, nil
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"HOOKFREIGHT_REDIS_HOST"`
	Port     int    `yaml:"port" env:"HOOKFREIGHT_REDIS_PORT"`
	Password string `yaml:"password" env:"HOOKFREIGHT_REDIS_PASSWORD"`
	Database int    `yaml:"database" env:"HOOKFREIGHT_REDIS_DATABASE"`
}

func (c *RedisConfig) ToConfig() *redis.RedisConfig {
	return &redis.RedisConfig{
		Host:     c.Host,
		Port:     c.Port,
		Password: c.Password,
		Database: c.Database,
	}
}
