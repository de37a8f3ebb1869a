package config

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrMismatchedServiceType = errors.New("service type mismatch")

// Validate checks the assembled configuration. It also resolves the service
// type from the --service flag against any configured value.
func (c *Config) Validate(flags Flags) error {
	if err := c.validateService(flags); err != nil {
		return err
	}

	if err := c.validateBaseURL(); err != nil {
		return err
	}

	if err := c.validateGinMode(); err != nil {
		return err
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.QueueConcurrency < 1 {
		return fmt.Errorf("queue_concurrency must be at least 1, got %d", c.QueueConcurrency)
	}
	if c.QueueMaxRetries < 1 {
		return fmt.Errorf("queue_max_retries must be at least 1, got %d", c.QueueMaxRetries)
	}

	if c.PostgresURL == "" {
		return errors.New("postgres_url is required")
	}

	return c.validateRedis()
}

func (c *Config) validateService(flags Flags) error {
	flagService, err := ServiceTypeFromString(flags.Service)
	if err != nil {
		return err
	}

	configService, err := c.GetService()
	if err != nil {
		return err
	}

	// If service is set in config (via env or file), it must match flag
	if c.Service != "" && flags.Service != "" && configService != flagService {
		return ErrMismatchedServiceType
	}

	if c.Service == "" {
		c.Service = flags.Service
	}
	return nil
}

// validateGinMode rejects values gin.SetMode would panic on.
func (c *Config) validateGinMode() error {
	switch c.GinMode {
	case "debug", "release", "test":
		return nil
	}
	return fmt.Errorf("gin_mode must be debug, release, or test, got %q", c.GinMode)
}

func (c *Config) validateBaseURL() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host, got %q", c.BaseURL)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis == nil {
		return errors.New("redis configuration is required")
	}
	if c.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if c.Redis.Port == 0 {
		return errors.New("redis port is required")
	}
	return nil
}
