package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hookfreight/hookfreight/internal/apirouter"
	"github.com/hookfreight/hookfreight/internal/backoff"
	"github.com/hookfreight/hookfreight/internal/config"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/forwarder"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"github.com/hookfreight/hookfreight/internal/redis"
	"github.com/hookfreight/hookfreight/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const serviceName = "hookfreight"

// supervisorShutdownTimeout bounds the drain after the run context is
// cancelled. An in-flight forward can hold the consumer for up to the max
// per-endpoint timeout, so some jobs may still be cut off and reclaimed by
// the monitor on the next sweep.
const supervisorShutdownTimeout = 30 * time.Second

// retryBackoffInterval is the delay before the first retry; retry r waits
// interval * 2^(r-1).
const retryBackoffInterval = time.Second

// ServiceBuilder constructs workers based on service configuration.
type ServiceBuilder struct {
	ctx        context.Context
	cfg        *config.Config
	logger     *logging.Logger
	supervisor *worker.WorkerSupervisor

	// Track service instances for cleanup
	services []*serviceInstance
}

// serviceInstance represents a single service with its cleanup functions
type serviceInstance struct {
	name         string
	cleanupFuncs []func(context.Context)
}

// NewServiceBuilder creates a new ServiceBuilder.
func NewServiceBuilder(ctx context.Context, cfg *config.Config, logger *logging.Logger) *ServiceBuilder {
	return &ServiceBuilder{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		supervisor: worker.NewWorkerSupervisor(logger,
			worker.WithShutdownTimeout(supervisorShutdownTimeout)),
		services: []*serviceInstance{},
	}
}

// BuildAPIWorkers creates and registers the workers for the api service:
// the HTTP server carrying the capture route and the management API.
func (b *ServiceBuilder) BuildAPIWorkers() error {
	b.logger.Debug("building api service workers")

	svc := &serviceInstance{name: "api"}
	b.services = append(b.services, svc)

	redisClient, err := redis.New(b.ctx, b.cfg.Redis.ToConfig())
	if err != nil {
		b.logger.Error("redis client initialization failed", zap.Error(err))
		return err
	}

	deliveryMQ := deliverymq.New(redisClient, deliverymq.WithLogger(b.logger))
	svc.cleanupFuncs = append(svc.cleanupFuncs, func(ctx context.Context) {
		if err := deliveryMQ.Shutdown(ctx); err != nil {
			b.logger.Ctx(ctx).Error("error shutting down delivery queue", zap.Error(err))
		}
	})

	b.logger.Debug("creating postgres pool for api service")
	pgPool, err := pgxpool.New(b.ctx, b.cfg.PostgresURL)
	if err != nil {
		b.logger.Error("postgres pool initialization failed", zap.Error(err))
		return err
	}
	svc.cleanupFuncs = append(svc.cleanupFuncs, func(context.Context) { pgPool.Close() })

	router := apirouter.NewRouter(
		apirouter.RouterConfig{
			ServiceName:  serviceName,
			GinMode:      b.cfg.GinMode,
			MaxBodyBytes: b.cfg.MaxBodyBytes,
		},
		b.logger,
		pgstore.New(pgPool),
		deliveryMQ,
		b.supervisor.GetHealthTracker(),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port),
		Handler: router,
	}
	b.supervisor.Register(NewHTTPServerWorker(httpServer, b.logger))

	b.logger.Info("api service workers built")
	return nil
}

// BuildDeliveryWorkers creates and registers the workers for the delivery
// service: the queue consumer and the queue monitor.
func (b *ServiceBuilder) BuildDeliveryWorkers() error {
	b.logger.Debug("building delivery service workers")

	svc := &serviceInstance{name: "delivery"}
	b.services = append(b.services, svc)

	redisClient, err := redis.New(b.ctx, b.cfg.Redis.ToConfig())
	if err != nil {
		b.logger.Error("redis client initialization failed", zap.Error(err))
		return err
	}
	deliveryMQ := deliverymq.New(redisClient, deliverymq.WithLogger(b.logger))

	b.logger.Debug("creating postgres pool for delivery service")
	pgPool, err := pgxpool.New(b.ctx, b.cfg.PostgresURL)
	if err != nil {
		b.logger.Error("postgres pool initialization failed", zap.Error(err))
		return err
	}
	svc.cleanupFuncs = append(svc.cleanupFuncs, func(context.Context) { pgPool.Close() })

	// The base URL anchors the self-forward guard.
	fwd, err := forwarder.New(b.cfg.BaseURL)
	if err != nil {
		b.logger.Error("forwarder initialization failed", zap.Error(err))
		return err
	}

	handler := deliverymq.NewMessageHandler(
		b.logger,
		pgstore.New(pgPool),
		fwd,
		&backoff.ExponentialBackoff{Interval: retryBackoffInterval, Base: 2},
		b.cfg.QueueMaxRetries,
	)

	b.supervisor.Register(NewDeliveryConsumerWorker(deliveryMQ, handler, b.cfg.QueueConcurrency, b.logger))
	b.supervisor.Register(deliverymq.NewMonitor(deliveryMQ))

	b.logger.Info("delivery service workers built")
	return nil
}

// BuildWorkers builds the workers for the configured service type and
// returns the supervisor that runs them.
func (b *ServiceBuilder) BuildWorkers() (*worker.WorkerSupervisor, error) {
	serviceType := b.cfg.MustGetService()
	b.logger.Debug("building workers for service type",
		zap.String("service_type", serviceType.String()))

	if serviceType == config.ServiceTypeAPI || serviceType == config.ServiceTypeSingular {
		if err := b.BuildAPIWorkers(); err != nil {
			b.logger.Error("failed to build api workers", zap.Error(err))
			return nil, err
		}
	}
	if serviceType == config.ServiceTypeDelivery || serviceType == config.ServiceTypeSingular {
		if err := b.BuildDeliveryWorkers(); err != nil {
			b.logger.Error("failed to build delivery workers", zap.Error(err))
			return nil, err
		}
	}

	return b.supervisor, nil
}

// Cleanup runs all registered cleanup functions for all services.
func (b *ServiceBuilder) Cleanup(ctx context.Context) {
	logger := b.logger.Ctx(ctx)
	for _, svc := range b.services {
		logger.Debug("cleaning up service", zap.String("service", svc.name))
		for _, cleanupFunc := range svc.cleanupFuncs {
			cleanupFunc(ctx)
		}
	}
}
