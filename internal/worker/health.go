package worker

import (
	"sync"
	"time"
)

const (
	WorkerStatusHealthy = "healthy"
	WorkerStatusFailed  = "failed"
)

// WorkerHealth is the reported state of a single worker. Error details are
// not exposed here; they only go to the logs.
type WorkerHealth struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthTracker tracks the health of all supervised workers. Safe for
// concurrent use.
type HealthTracker struct {
	mu      sync.RWMutex
	workers map[string]WorkerHealth
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		workers: make(map[string]WorkerHealth),
	}
}

func (h *HealthTracker) MarkHealthy(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[name] = WorkerHealth{
		Status:    WorkerStatusHealthy,
		UpdatedAt: time.Now().UTC(),
	}
}

func (h *HealthTracker) MarkFailed(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.workers[name] = WorkerHealth{
		Status:    WorkerStatusFailed,
		UpdatedAt: time.Now().UTC(),
	}
}

// IsHealthy reports whether every tracked worker is healthy.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthyLocked()
}

// GetStatus returns the overall status plus the per-worker breakdown.
func (h *HealthTracker) GetStatus() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	workers := make(map[string]WorkerHealth, len(h.workers))
	for name, w := range h.workers {
		workers[name] = w
	}

	status := WorkerStatusHealthy
	if !h.healthyLocked() {
		status = WorkerStatusFailed
	}

	return map[string]interface{}{
		"status":    status,
		"workers":   workers,
		"timestamp": time.Now().UTC(),
	}
}

func (h *HealthTracker) healthyLocked() bool {
	for _, w := range h.workers {
		if w.Status != WorkerStatusHealthy {
			return false
		}
	}
	return true
}
