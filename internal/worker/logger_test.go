package worker_test

import (
	"testing"

	"github.com/hookfreight/hookfreight/internal/util/testutil"
	"github.com/hookfreight/hookfreight/internal/worker"
)

// TestLoggingLoggerImplementsInterface verifies that *logging.Logger
// from internal/logging satisfies the worker.Logger interface.
func TestLoggingLoggerImplementsInterface(t *testing.T) {
	logger := testutil.CreateTestLogger(t)

	var _ worker.Logger = logger

	supervisor := worker.NewWorkerSupervisor(logger)
	if supervisor == nil {
		t.Fatal("expected non-nil supervisor")
	}
}
