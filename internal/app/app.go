package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hookfreight/hookfreight/internal/config"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/services"
	"github.com/hookfreight/hookfreight/internal/version"
	"go.uber.org/zap"
)

// cleanupTimeout bounds the post-drain resource cleanup (pools, queue
// handles) once the workers have stopped.
const cleanupTimeout = 10 * time.Second

type App struct {
	config *config.Config
}

func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	return run(ctx, a.config)
}

func run(mainContext context.Context, cfg *config.Config) error {
	logger, err := logging.NewLogger(
		logging.WithLogLevel(cfg.LogLevel),
		logging.WithService(cfg.MustGetService().String()),
	)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting hookfreight", zap.String("version", version.Version()))
	logger.Debug("configuration loaded", cfg.LogConfigurationSummary()...)

	if err := runMigration(mainContext, cfg, logger); err != nil {
		return err
	}

	// Set up cancellation context
	ctx, cancel := context.WithCancel(mainContext)
	defer cancel()

	logger.Debug("building services")
	builder := services.NewServiceBuilder(ctx, cfg, logger)

	supervisor, err := builder.BuildWorkers()
	if err != nil {
		logger.Error("failed to build workers", zap.Error(err))
		return err
	}

	// Handle sigterm and await termChan signal
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(termChan)

	// Run workers in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- supervisor.Run(ctx)
	}()

	// Wait for either termination signal or worker failure
	var exitErr error
	select {
	case <-termChan:
		logger.Info("shutdown signal received")
		cancel() // Cancel context to trigger graceful shutdown
		err := <-errChan
		// context.Canceled is expected during graceful shutdown
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("error during graceful shutdown", zap.Error(err))
			exitErr = err
		}
	case err := <-errChan:
		// Workers exited unexpectedly
		if err != nil {
			logger.Error("workers exited unexpectedly", zap.Error(err))
			exitErr = err
		}
	}

	// Run cleanup functions
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer shutdownCancel()
	builder.Cleanup(shutdownCtx)

	logger.Info("hookfreight shutdown complete")

	return exitErr
}
