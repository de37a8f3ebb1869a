package deliverymq

import (
	"context"
	"strconv"
	"time"

	"github.com/hookfreight/hookfreight/internal/redislock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval  = time.Second
	defaultSweepBatchSize = 100

	monitorLockKey = "deliverymq:monitor:lock"
	monitorLockTTL = 30 * time.Second
)

// promoteScript moves due jobs from the delayed zset to the waiting list.
var promoteScript = goredis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, jobID in ipairs(due) do
	redis.call("ZREM", KEYS[1], jobID)
	redis.call("LPUSH", KEYS[2], jobID)
end
return #due
`)

// reclaimScript requeues jobs whose lease expired without a settle. Reclaimed
// ids go to the consumer end of the waiting list for prompt redelivery.
var reclaimScript = goredis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, jobID in ipairs(expired) do
	redis.call("ZREM", KEYS[1], jobID)
	redis.call("RPUSH", KEYS[2], jobID)
end
return #expired
`)

// Monitor is the queue's background sweeper: it promotes due delayed jobs,
// reclaims stalled leases, and enforces the completed/failed retention. Every
// sweep step is atomic per job, so overlapping monitors are safe; the lock
// just keeps replicas from doing the same work.
type Monitor struct {
	queue     *Queue
	lock      redislock.Lock
	interval  time.Duration
	batchSize int
}

type MonitorOption func(*Monitor)

func WithSweepInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = interval
	}
}

func WithSweepBatchSize(batchSize int) MonitorOption {
	return func(m *Monitor) {
		m.batchSize = batchSize
	}
}

func NewMonitor(queue *Queue, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		queue:     queue,
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lock = redislock.New(queue.client,
		redislock.WithKey(monitorLockKey),
		redislock.WithTTL(monitorLockTTL),
	)
	return m
}

func (m *Monitor) Name() string {
	return "deliverymq-monitor"
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		acquired, err := m.lock.AttemptLock(ctx)
		if err != nil {
			m.queue.logger.Ctx(ctx).Error("monitor lock attempt failed", zap.Error(err))
			continue
		}
		if !acquired {
			continue
		}

		if err := m.Sweep(ctx); err != nil {
			m.queue.logger.Ctx(ctx).Error("monitor sweep failed", zap.Error(err))
		}

		if _, err := m.lock.Unlock(ctx); err != nil {
			m.queue.logger.Ctx(ctx).Error("monitor unlock failed", zap.Error(err))
		}
	}
}

// Sweep runs one promotion, reclaim, and retention pass.
func (m *Monitor) Sweep(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	promoted, err := promoteScript.Run(ctx, m.queue.client,
		[]string{keyDelayed, keyWaiting},
		now, m.batchSize,
	).Int()
	if err != nil {
		return err
	}
	if promoted > 0 {
		m.queue.logger.Ctx(ctx).Info("promoted delayed jobs", zap.Int("count", promoted))
	}

	reclaimed, err := reclaimScript.Run(ctx, m.queue.client,
		[]string{keyActive, keyWaiting},
		now, m.batchSize,
	).Int()
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		m.queue.logger.Ctx(ctx).Warn("reclaimed stalled jobs", zap.Int("count", reclaimed))
	}

	return m.enforceRetention(ctx)
}

func (m *Monitor) enforceRetention(ctx context.Context) error {
	now := time.Now()

	completedCutoff := strconv.FormatInt(now.Add(-m.queue.completedRetention).UnixMilli(), 10)
	if err := m.queue.client.ZRemRangeByScore(ctx, keyCompleted, "-inf", completedCutoff).Err(); err != nil {
		return err
	}

	failedCutoff := strconv.FormatInt(now.Add(-m.queue.failedRetention).UnixMilli(), 10)
	if err := m.queue.client.ZRemRangeByScore(ctx, keyFailed, "-inf", failedCutoff).Err(); err != nil {
		return err
	}

	// Count cap on completed, oldest first. The payload keys still expire on
	// their own TTL.
	count, err := m.queue.client.ZCard(ctx, keyCompleted).Result()
	if err != nil {
		return err
	}
	if count > m.queue.maxCompleted {
		if err := m.queue.client.ZRemRangeByRank(ctx, keyCompleted, 0, count-m.queue.maxCompleted-1).Err(); err != nil {
			return err
		}
	}

	return nil
}
