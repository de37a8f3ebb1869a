// Package consumer runs a bounded pool of goroutines over a job source.
package consumer

import (
	"context"

	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/logging"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type Consumer interface {
	Run(context.Context) error
}

// JobSource hands out leased jobs. deliverymq.Queue satisfies it.
type JobSource interface {
	Receive(ctx context.Context) (*deliverymq.Job, error)
	Shutdown(ctx context.Context) error
}

type consumerImplOptions struct {
	name        string
	concurrency int
	logger      *logging.Logger
}

func WithName(name string) func(*consumerImplOptions) {
	return func(c *consumerImplOptions) {
		c.name = name
	}
}

func WithConcurrency(concurrency int) func(*consumerImplOptions) {
	return func(c *consumerImplOptions) {
		c.concurrency = concurrency
	}
}

func WithLogger(logger *logging.Logger) func(*consumerImplOptions) {
	return func(c *consumerImplOptions) {
		c.logger = logger
	}
}

func New(source JobSource, handler deliverymq.Handler, opts ...func(*consumerImplOptions)) Consumer {
	options := &consumerImplOptions{
		name:        "",
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(options)
	}
	return &consumerImpl{
		source:              source,
		handler:             handler,
		consumerImplOptions: *options,
	}
}

type consumerImpl struct {
	consumerImplOptions
	source  JobSource
	handler deliverymq.Handler
}

var _ Consumer = &consumerImpl{}

func (c *consumerImpl) Run(ctx context.Context) error {
	defer c.source.Shutdown(ctx)

	tracerProvider := otel.GetTracerProvider()
	tracer := tracerProvider.Tracer("github.com/hookfreight/hookfreight/internal/consumer")

	var sourceErr error

	sem := make(chan struct{}, c.concurrency)
recvLoop:
	for {
		job, err := c.source.Receive(ctx)
		if err != nil {
			sourceErr = err
			break recvLoop
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// The job is leased but nobody will run it. Requeue it now
			// rather than waiting out the lease.
			if err := job.Nack(context.Background()); err != nil && c.logger != nil {
				c.logger.Ctx(ctx).Error("failed to requeue job on shutdown",
					zap.String("name", c.name), zap.Error(err))
			}
			break recvLoop
		}

		go func() {
			defer func() { <-sem }() // Release the semaphore.

			// Detached from the receive context so an in-flight job finishes
			// during shutdown.
			handlerCtx, span := tracer.Start(context.Background(), c.actionWithName("Consumer.Handle"))
			defer span.End()

			if err := c.handler.Handle(handlerCtx, job); err != nil {
				span.RecordError(err)
				if c.logger != nil {
					c.logger.Ctx(handlerCtx).Error("consumer handler error", zap.String("name", c.name), zap.Error(err))
				}
			}
		}()
	}

	// We're no longer receiving jobs. Wait to finish handling any in-flight
	// jobs by totally acquiring the semaphore.
	for n := 0; n < c.concurrency; n++ {
		sem <- struct{}{}
	}

	return sourceErr
}

func (c *consumerImpl) actionWithName(action string) string {
	if c.name == "" {
		return action
	}
	return c.name + "." + action
}
