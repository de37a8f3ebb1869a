package app

import (
	"context"
	"strings"
	"time"

	"github.com/hookfreight/hookfreight/internal/config"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/migrator"
	"go.uber.org/zap"
)

// runMigration applies pending schema migrations before any service starts.
//
// golang-migrate only takes the advisory lock when migrations actually run.
// When several nodes start at once against a database with pending
// migrations, one wins the lock and applies them; the rest fail with a lock
// error, wait out the delay, and retry against the now-current schema.
func runMigration(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	const (
		maxRetries = 3
		retryDelay = 5 * time.Second
	)

	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		m, err := migrator.New(migrator.MigrationOpts{
			PG: migrator.MigrationOptsPG{URL: cfg.PostgresURL},
		})
		if err != nil {
			return err
		}

		version, applied, err := m.Up(ctx, -1)

		// Always close the migrator after each attempt.
		sourceErr, dbErr := m.Close(ctx)
		if sourceErr != nil {
			logger.Error("failed to close migrator source", zap.Error(sourceErr))
		}
		if dbErr != nil {
			logger.Error("failed to close migrator database connection", zap.Error(dbErr))
		}

		if err == nil {
			if applied > 0 {
				logger.Info("migrations applied",
					zap.Int("version", version),
					zap.Int("count", applied))
			} else {
				logger.Info("no migrations applied", zap.Int("version", version))
			}
			return nil
		}

		lastErr = err
		if !isLockRelatedError(err) {
			logger.Error("migration failed", zap.Error(err))
			return err
		}

		if attempt < maxRetries {
			logger.Warn("migration lock conflict, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Duration("retry_delay", retryDelay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		} else {
			logger.Error("migration failed after retries",
				zap.Int("attempts", maxRetries),
				zap.Error(err))
		}
	}

	return lastErr
}

// isLockRelatedError matches the lock acquisition failures golang-migrate
// surfaces: database.ErrLocked ("can't acquire lock") and the postgres
// driver's advisory lock failure ("try lock failed").
func isLockRelatedError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	lockIndicators := []string{
		"can't acquire lock",
		"try lock failed",
	}
	for _, indicator := range lockIndicators {
		if strings.Contains(errMsg, indicator) {
			return true
		}
	}
	return false
}
