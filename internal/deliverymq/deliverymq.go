// Package deliverymq implements the Redis-backed delivery queue.
//
// Layout, under the "deliverymq:" namespace: pending job ids live in the
// waiting list (LPUSH producer side, RPOP consumer side), scheduled retries in
// the delayed zset scored by ready-at time, leased jobs in the active zset
// scored by lease expiry, and settled ids in the completed/failed zsets scored
// by settle time. Payloads are stored per job under job:{id}; the job id is
// the publish idempotency key.
package deliverymq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyWaiting   = "deliverymq:waiting"
	keyDelayed   = "deliverymq:delayed"
	keyActive    = "deliverymq:active"
	keyCompleted = "deliverymq:completed"
	keyFailed    = "deliverymq:failed"
	jobKeyPrefix = "deliverymq:job:"
)

const (
	defaultPollInterval       = time.Second
	defaultVisibilityTimeout  = 5 * time.Minute
	defaultCompletedRetention = 24 * time.Hour
	defaultFailedRetention    = 7 * 24 * time.Hour
	defaultMaxCompleted       = 1000
)

var ErrQueueShutdown = errors.New("deliverymq: queue is shut down")

// publishScript stores the payload under the job key and enqueues the id, as
// one atomic step. SET NX makes a republish of the same job id a no-op.
var publishScript = goredis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX") then
	redis.call("LPUSH", KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// receiveScript pops one job id and leases it by moving it into the active
// zset before the payload read, so a crash between the two never loses the id.
var receiveScript = goredis.NewScript(`
local jobID = redis.call("RPOP", KEYS[1])
if not jobID then
	return false
end
redis.call("ZADD", KEYS[2], ARGV[1], jobID)
local payload = redis.call("GET", ARGV[2] .. jobID)
if not payload then
	return {jobID, ""}
end
return {jobID, payload}
`)

type Queue struct {
	client redis.Cmdable
	logger *logging.Logger

	pollInterval       time.Duration
	visibilityTimeout  time.Duration
	completedRetention time.Duration
	failedRetention    time.Duration
	maxCompleted       int64

	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Queue)

func WithLogger(logger *logging.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithPollInterval sets how long Receive sleeps between polls of an empty
// queue.
func WithPollInterval(interval time.Duration) Option {
	return func(q *Queue) {
		q.pollInterval = interval
	}
}

// WithVisibilityTimeout sets the job lease duration. A job not settled within
// it is considered stalled and gets requeued by the monitor. It must exceed
// the longest endpoint forward timeout.
func WithVisibilityTimeout(timeout time.Duration) Option {
	return func(q *Queue) {
		q.visibilityTimeout = timeout
	}
}

func WithCompletedRetention(retention time.Duration) Option {
	return func(q *Queue) {
		q.completedRetention = retention
	}
}

func WithFailedRetention(retention time.Duration) Option {
	return func(q *Queue) {
		q.failedRetention = retention
	}
}

func WithMaxCompleted(max int64) Option {
	return func(q *Queue) {
		q.maxCompleted = max
	}
}

func New(client redis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client:             client,
		pollInterval:       defaultPollInterval,
		visibilityTimeout:  defaultVisibilityTimeout,
		completedRetention: defaultCompletedRetention,
		failedRetention:    defaultFailedRetention,
		maxCompleted:       defaultMaxCompleted,
		done:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = logging.NopLogger()
	}
	return q
}

// Publish enqueues a delivery task. The task's job id doubles as the
// idempotency key: publishing a job id that already exists is a no-op.
func (q *Queue) Publish(ctx context.Context, task models.DeliveryTask) error {
	payload, err := task.ToString()
	if err != nil {
		return err
	}

	jobID := task.JobID()
	published, err := publishScript.Run(ctx, q.client,
		[]string{jobKey(jobID), keyWaiting},
		payload, jobID,
	).Int()
	if err != nil {
		return err
	}

	if published == 0 {
		q.logger.Ctx(ctx).Info("duplicate delivery job ignored",
			zap.String("job_id", jobID),
			zap.String("event_id", task.EventID))
		return nil
	}

	q.logger.Ctx(ctx).Info("delivery job published",
		zap.String("job_id", jobID),
		zap.String("event_id", task.EventID),
		zap.String("endpoint_id", task.EndpointID),
		zap.Int("attempt", task.Attempt),
		zap.Bool("manual", task.Manual))
	return nil
}

// Receive blocks until a job is available, the context is canceled, or the
// queue is shut down. The returned job holds a lease for the visibility
// timeout and must be settled with Complete, Retry, Fail, or Nack.
func (q *Queue) Receive(ctx context.Context) (*Job, error) {
	for {
		select {
		case <-q.done:
			return nil, ErrQueueShutdown
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		job, err := q.receiveOne(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		select {
		case <-q.done:
			return nil, ErrQueueShutdown
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *Queue) receiveOne(ctx context.Context) (*Job, error) {
	leaseExpiry := strconv.FormatInt(time.Now().Add(q.visibilityTimeout).UnixMilli(), 10)

	res, err := receiveScript.Run(ctx, q.client,
		[]string{keyWaiting, keyActive},
		leaseExpiry, jobKeyPrefix,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return nil, errors.New("deliverymq: unexpected receive script reply")
	}
	jobID, _ := vals[0].(string)
	payload, _ := vals[1].(string)

	if payload == "" {
		// The payload expired while the id was still queued. Drop the orphan.
		q.logger.Ctx(ctx).Warn("dropping job with missing payload", zap.String("job_id", jobID))
		if err := q.client.ZRem(ctx, keyActive, jobID).Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var task models.DeliveryTask
	if err := task.FromString(payload); err != nil {
		q.logger.Ctx(ctx).Error("failing job with malformed payload",
			zap.String("job_id", jobID),
			zap.Error(err))
		if err := q.settleFailed(ctx, jobID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &Job{
		ID:    jobID,
		Task:  task,
		queue: q,
	}, nil
}

func (q *Queue) settleFailed(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, jobID)
	pipe.ZAdd(ctx, keyFailed, redis.Z{Score: nowScore(), Member: jobID})
	pipe.PExpire(ctx, jobKey(jobID), q.failedRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// Stats reports the queue depth per state.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, keyWaiting)
	active := pipe.ZCard(ctx, keyActive)
	completed := pipe.ZCard(ctx, keyCompleted)
	failed := pipe.ZCard(ctx, keyFailed)
	delayed := pipe.ZCard(ctx, keyDelayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}

	return Stats{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}, nil
}

// Shutdown unblocks pending and future Receive calls. It does not close the
// Redis client, which the queue does not own.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func nowScore() float64 {
	return float64(time.Now().UnixMilli())
}
