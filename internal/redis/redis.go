package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/redis/go-redis/extra/redisotel/v9"
	r "github.com/redis/go-redis/v9"
)

// Reexport go-redis's Nil constant for DX purposes.
const (
	Nil = r.Nil
)

type (
	Cmdable   = r.Cmdable
	Pipeliner = r.Pipeliner
	Z         = r.Z
)

type Client interface {
	Cmdable
	Close() error
}

var (
	once                sync.Once
	client              Client
	initializationError error
)

// New returns the process-wide Redis client, creating it on first call.
// Subsequent calls return the same client regardless of config.
func New(ctx context.Context, config *RedisConfig) (Client, error) {
	once.Do(func() {
		client, initializationError = NewClient(ctx, config)
		if initializationError == nil {
			initializationError = instrumentOpenTelemetry(client)
		}
	})

	if client == nil && initializationError == nil {
		initializationError = fmt.Errorf("redis client initialization failed: unexpected state")
	}

	return client, initializationError
}

// NewClient creates a Redis client without using the singleton. Components
// that need connection isolation (tests, mostly) should use this.
func NewClient(ctx context.Context, config *RedisConfig) (Client, error) {
	options := &r.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.Database,
	}

	if config.TLSEnabled {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	c := r.NewClient(options)

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return c, nil
}

func instrumentOpenTelemetry(client Client) error {
	// redisotel needs the concrete client type
	if concreteClient, ok := client.(*r.Client); ok {
		return redisotel.InstrumentTracing(concreteClient)
	}
	return nil
}
