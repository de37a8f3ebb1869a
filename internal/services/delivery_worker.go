package services

import (
	"context"
	"errors"

	"github.com/hookfreight/hookfreight/internal/consumer"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/worker"
	"go.uber.org/zap"
)

// DeliveryConsumerWorker drains the delivery queue under the worker
// supervisor.
type DeliveryConsumerWorker struct {
	queue       *deliverymq.Queue
	handler     deliverymq.Handler
	concurrency int
	logger      *logging.Logger
}

func NewDeliveryConsumerWorker(
	queue *deliverymq.Queue,
	handler deliverymq.Handler,
	concurrency int,
	logger *logging.Logger,
) worker.Worker {
	return &DeliveryConsumerWorker{
		queue:       queue,
		handler:     handler,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (w *DeliveryConsumerWorker) Name() string {
	return "delivery-consumer"
}

// Run consumes delivery jobs until the context is cancelled or the queue is
// shut down, then waits for in-flight jobs to settle.
func (w *DeliveryConsumerWorker) Run(ctx context.Context) error {
	logger := w.logger.Ctx(ctx)
	logger.Info("delivery consumer running", zap.Int("concurrency", w.concurrency))

	csm := consumer.New(w.queue, w.handler,
		consumer.WithName("deliverymq"),
		consumer.WithConcurrency(w.concurrency),
		consumer.WithLogger(w.logger),
	)

	if err := csm.Run(ctx); err != nil && !isGracefulStop(err) {
		logger.Error("delivery consumer error", zap.Error(err))
		return err
	}
	return nil
}

func isGracefulStop(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, deliverymq.ErrQueueShutdown)
}
