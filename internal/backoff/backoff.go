package backoff

import (
	"math"
	"time"
)

// Backoff computes the delay before the next attempt given how many retries
// have already happened.
type Backoff interface {
	Duration(retries int) time.Duration
}

// ExponentialBackoff returns Interval * Base^retries.
type ExponentialBackoff struct {
	Interval time.Duration
	Base     int
}

var _ Backoff = &ExponentialBackoff{}

func (b *ExponentialBackoff) Duration(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	return time.Duration(float64(b.Interval) * math.Pow(float64(b.Base), float64(retries)))
}

// ConstantBackoff returns the same interval regardless of retries.
type ConstantBackoff struct {
	Interval time.Duration
}

var _ Backoff = &ConstantBackoff{}

func (b *ConstantBackoff) Duration(retries int) time.Duration {
	return b.Interval
}

// ScheduledBackoff follows a fixed schedule, clamping to the last entry.
// An empty schedule yields zero delay.
type ScheduledBackoff struct {
	Schedule []time.Duration
}

var _ Backoff = &ScheduledBackoff{}

func (b *ScheduledBackoff) Duration(retries int) time.Duration {
	if len(b.Schedule) == 0 {
		return 0
	}
	if retries < 0 {
		retries = 0
	}
	if retries >= len(b.Schedule) {
		return b.Schedule[len(b.Schedule)-1]
	}
	return b.Schedule[retries]
}
