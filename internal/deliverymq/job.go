package deliverymq

import (
	"context"
	"time"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/redis"
)

// Job is one leased delivery task. Exactly one settle call (Complete, Retry,
// Fail, or Nack) ends the lease; an unsettled job is requeued by the monitor
// once the lease expires.
type Job struct {
	ID   string
	Task models.DeliveryTask

	queue *Queue
}

// Complete settles the job as done. The payload is kept for the completed
// retention window.
func (j *Job) Complete(ctx context.Context) error {
	pipe := j.queue.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, j.ID)
	pipe.ZAdd(ctx, keyCompleted, redis.Z{Score: nowScore(), Member: j.ID})
	pipe.PExpire(ctx, jobKey(j.ID), j.queue.completedRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// Retry reschedules the job under the same id with an updated task, to run
// after delay. The rewritten payload carries the incremented attempt and the
// new parent delivery id.
func (j *Job) Retry(ctx context.Context, task models.DeliveryTask, delay time.Duration) error {
	payload, err := task.ToString()
	if err != nil {
		return err
	}
	readyAt := time.Now().Add(delay)

	pipe := j.queue.client.TxPipeline()
	pipe.Set(ctx, jobKey(j.ID), payload, 0)
	pipe.ZRem(ctx, keyActive, j.ID)
	pipe.ZAdd(ctx, keyDelayed, redis.Z{Score: float64(readyAt.UnixMilli()), Member: j.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Fail settles the job as terminally failed. The payload is kept for the
// failed retention window.
func (j *Job) Fail(ctx context.Context) error {
	return j.queue.settleFailed(ctx, j.ID)
}

// Nack returns the job to the waiting list unchanged, for infrastructure
// failures where the attempt never counted. The id goes to the consumer end
// of the list, so it is picked up on the next poll.
func (j *Job) Nack(ctx context.Context) error {
	pipe := j.queue.client.TxPipeline()
	pipe.ZRem(ctx, keyActive, j.ID)
	pipe.RPush(ctx, keyWaiting, j.ID)
	_, err := pipe.Exec(ctx)
	return err
}
