package consumer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hookfreight/hookfreight/internal/consumer"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/models"
	internalredis "github.com/hookfreight/hookfreight/internal/redis"
	"github.com/hookfreight/hookfreight/internal/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConsumerQueue(t *testing.T) (*deliverymq.Queue, internalredis.Client) {
	t.Helper()

	client := testutil.CreateTestRedisClient(t)
	queue := deliverymq.New(client,
		deliverymq.WithLogger(testutil.CreateTestLogger(t)),
		deliverymq.WithPollInterval(10*time.Millisecond),
	)
	t.Cleanup(func() {
		queue.Shutdown(context.Background())
	})
	return queue, client
}

type countingHandler struct {
	mu      sync.Mutex
	handled []models.DeliveryTask
}

func (h *countingHandler) Handle(ctx context.Context, job *deliverymq.Job) error {
	h.mu.Lock()
	h.handled = append(h.handled, job.Task)
	h.mu.Unlock()
	return job.Complete(ctx)
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// gatedHandler blocks every job on the gate channel and records how many run
// at once.
type gatedHandler struct {
	gate chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{gate: make(chan struct{})}
}

func (h *gatedHandler) Handle(ctx context.Context, job *deliverymq.Job) error {
	h.mu.Lock()
	h.inFlight++
	if h.inFlight > h.peak {
		h.peak = h.inFlight
	}
	h.mu.Unlock()

	<-h.gate

	h.mu.Lock()
	h.inFlight--
	h.mu.Unlock()
	return job.Complete(ctx)
}

func (h *gatedHandler) current() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inFlight
}

func (h *gatedHandler) maxConcurrent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peak
}

func TestConsumerProcessesJobs(t *testing.T) {
	t.Parallel()

	queue, client := setupConsumerQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Publish(ctx, models.NewDeliveryTask(idgen.Event(), idgen.Endpoint())))
	}

	handler := &countingHandler{}
	c := consumer.New(queue, handler,
		consumer.WithName("deliverymq"),
		consumer.WithConcurrency(2),
		consumer.WithLogger(testutil.CreateTestLogger(t)))

	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return handler.count() == 3
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return client.ZCard(ctx, "deliverymq:completed").Val() == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, queue.Shutdown(ctx))
	require.ErrorIs(t, <-errChan, deliverymq.ErrQueueShutdown)
}

func TestConsumerConcurrencyLimit(t *testing.T) {
	t.Parallel()

	queue, client := setupConsumerQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Publish(ctx, models.NewDeliveryTask(idgen.Event(), idgen.Endpoint())))
	}

	handler := newGatedHandler()
	c := consumer.New(queue, handler, consumer.WithConcurrency(2))

	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return handler.current() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// No third job may start while both slots are taken.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, handler.current())

	close(handler.gate)

	require.Eventually(t, func() bool {
		return client.ZCard(ctx, "deliverymq:completed").Val() == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, handler.maxConcurrent())

	require.NoError(t, queue.Shutdown(ctx))
	require.ErrorIs(t, <-errChan, deliverymq.ErrQueueShutdown)
}

func TestConsumerShutdownRequeuesHeldJob(t *testing.T) {
	t.Parallel()

	queue, client := setupConsumerQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, models.NewDeliveryTask(idgen.Event(), idgen.Endpoint())))
	require.NoError(t, queue.Publish(ctx, models.NewDeliveryTask(idgen.Event(), idgen.Endpoint())))

	handler := newGatedHandler()
	c := consumer.New(queue, handler,
		consumer.WithConcurrency(1),
		consumer.WithLogger(testutil.CreateTestLogger(t)))

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Run(runCtx)
	}()

	// First job blocks in the handler, second is leased but waiting on the
	// concurrency slot.
	require.Eventually(t, func() bool {
		return handler.current() == 1 &&
			client.LLen(ctx, "deliverymq:waiting").Val() == 0 &&
			client.ZCard(ctx, "deliverymq:active").Val() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	// The held job goes back to waiting instead of riding out its lease.
	require.Eventually(t, func() bool {
		return client.LLen(ctx, "deliverymq:waiting").Val() == 1
	}, 2*time.Second, 10*time.Millisecond)

	close(handler.gate)
	require.NoError(t, <-errChan)

	require.Eventually(t, func() bool {
		return client.ZCard(ctx, "deliverymq:completed").Val() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumerContextCanceled(t *testing.T) {
	t.Parallel()

	queue, _ := setupConsumerQueue(t)

	c := consumer.New(queue, &countingHandler{})

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Run(runCtx)
	require.ErrorIs(t, err, context.Canceled)
}
