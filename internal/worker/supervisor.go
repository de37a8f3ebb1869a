package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Logger is the minimal structured logging surface the supervisor needs.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// WorkerSupervisor runs a set of named workers and tracks their health.
//
// A worker failure does not stop the other workers. The failed worker is
// recorded in the health tracker so health checks can surface it while the
// rest of the process keeps serving.
type WorkerSupervisor struct {
	workers         map[string]Worker
	health          *HealthTracker
	logger          Logger
	shutdownTimeout time.Duration // 0 waits indefinitely
}

// SupervisorOption configures a WorkerSupervisor.
type SupervisorOption func(*WorkerSupervisor)

// WithShutdownTimeout bounds how long Run waits for workers to stop after the
// context is cancelled. The default is no timeout.
func WithShutdownTimeout(timeout time.Duration) SupervisorOption {
	return func(s *WorkerSupervisor) {
		s.shutdownTimeout = timeout
	}
}

// NewWorkerSupervisor creates a supervisor with no workers registered.
func NewWorkerSupervisor(logger Logger, opts ...SupervisorOption) *WorkerSupervisor {
	s := &WorkerSupervisor{
		workers: make(map[string]Worker),
		health:  NewHealthTracker(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a worker. Worker names must be unique; registering the same
// name twice panics.
func (s *WorkerSupervisor) Register(w Worker) {
	if _, exists := s.workers[w.Name()]; exists {
		panic(fmt.Sprintf("worker %s already registered", w.Name()))
	}
	s.workers[w.Name()] = w
	s.logger.Debug("worker registered", zap.String("worker", w.Name()))
}

// GetHealthTracker returns the health tracker for this supervisor.
func (s *WorkerSupervisor) GetHealthTracker() *HealthTracker {
	return s.health
}

// Run starts every registered worker and blocks until the context is
// cancelled or all workers have exited on their own.
//
// On cancellation it waits for the workers to stop, bounded by the shutdown
// timeout when one is configured, and returns ctx.Err(). Workers are expected
// to outlive the process, so Run returns an error if every worker exits
// before the context is cancelled.
func (s *WorkerSupervisor) Run(ctx context.Context) error {
	if len(s.workers) == 0 {
		s.logger.Warn("no workers registered")
		return errors.New("no workers registered")
	}

	s.logger.Info("starting workers", zap.Int("count", len(s.workers)))

	var wg sync.WaitGroup
	for name, w := range s.workers {
		wg.Add(1)
		s.health.MarkHealthy(name)
		go func(name string, w Worker) {
			defer wg.Done()

			s.logger.Info("worker starting", zap.String("worker", name))
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("worker failed", zap.String("worker", name), zap.Error(err))
				s.health.MarkFailed(name)
			} else {
				s.logger.Info("worker stopped", zap.String("worker", name))
			}
		}(name, w)
	}

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down workers")
		if s.shutdownTimeout > 0 {
			return s.waitWithTimeout(&wg, s.shutdownTimeout)
		}
		wg.Wait()
		return ctx.Err()
	case <-waitChan(&wg):
		s.logger.Error("all workers have exited unexpectedly")
		return errors.New("all workers have exited unexpectedly")
	}
}

// waitWithTimeout waits for the workers to stop, returning an error if the
// timeout elapses first.
func (s *WorkerSupervisor) waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) error {
	select {
	case <-waitChan(wg):
		s.logger.Info("all workers shutdown gracefully")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout exceeded, some workers may still be running",
			zap.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded (%v)", timeout)
	}
}

// waitChan converts a WaitGroup into a channel usable in a select.
func waitChan(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
