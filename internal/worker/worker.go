package worker

import "context"

// Worker is a long-running background process supervised by a WorkerSupervisor.
//
// Run blocks until the context is cancelled or a fatal error occurs. A nil or
// context.Canceled return is treated as a graceful stop; any other error marks
// the worker as failed.
type Worker interface {
	// Name identifies the worker in logs and health reports
	// (e.g. "http-server", "delivery-consumer").
	Name() string

	Run(ctx context.Context) error
}
