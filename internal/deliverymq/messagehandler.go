package deliverymq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hookfreight/hookfreight/internal/backoff"
	"github.com/hookfreight/hookfreight/internal/forwarder"
	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ErrMessageForwardingDisabled is recorded when the endpoint has
	// forwarding turned off or no forward URL configured.
	ErrMessageForwardingDisabled = "forwarding not enabled or URL not configured"

	errMessageEventNotFound    = "event not found"
	errMessageEndpointNotFound = "endpoint not found"
)

// Handler processes one leased job. Implementations settle the job
// themselves; a returned error means the job could not be settled normally.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// Error types distinguishing which stage of a delivery broke. Pre-delivery
// errors mean no attempt was made, attempt errors mean the attempt was
// interrupted with no outcome, post-delivery errors mean the outcome exists
// but persisting or settling it failed.
type PreDeliveryError struct {
	err error
}

func (e *PreDeliveryError) Error() string {
	return fmt.Sprintf("pre-delivery error: %v", e.err)
}

func (e *PreDeliveryError) Unwrap() error {
	return e.err
}

type AttemptError struct {
	err error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt error: %v", e.err)
}

func (e *AttemptError) Unwrap() error {
	return e.err
}

type PostDeliveryError struct {
	err error
}

func (e *PostDeliveryError) Error() string {
	return fmt.Sprintf("post-delivery error: %v", e.err)
}

func (e *PostDeliveryError) Unwrap() error {
	return e.err
}

// Forwarder executes one outbound attempt. A nil Result with an error means
// the attempt was interrupted and produced no outcome.
type Forwarder interface {
	Forward(ctx context.Context, endpoint *models.Endpoint, event *models.Event) (*forwarder.Result, error)
}

// DeliveryStore is the slice of the store the handler needs: the job's
// referents and the delivery ledger.
type DeliveryStore interface {
	RetrieveEvent(ctx context.Context, eventID string) (*models.Event, error)
	RetrieveEndpoint(ctx context.Context, endpointID string) (*models.Endpoint, error)
	InsertDelivery(ctx context.Context, delivery *models.Delivery) error
}

type messageHandler struct {
	logger        *logging.Logger
	store         DeliveryStore
	forwarder     Forwarder
	retryBackoff  backoff.Backoff
	retryMaxLimit int
}

func NewMessageHandler(
	logger *logging.Logger,
	store DeliveryStore,
	fwd Forwarder,
	retryBackoff backoff.Backoff,
	retryMaxLimit int,
) Handler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &messageHandler{
		logger:        logger,
		store:         store,
		forwarder:     fwd,
		retryBackoff:  retryBackoff,
		retryMaxLimit: retryMaxLimit,
	}
}

func (h *messageHandler) Handle(ctx context.Context, job *Job) error {
	task := job.Task

	h.logger.Ctx(ctx).Info("processing delivery job",
		zap.String("job_id", job.ID),
		zap.String("event_id", task.EventID),
		zap.String("endpoint_id", task.EndpointID),
		zap.Int("attempt", task.Attempt),
		zap.Bool("manual", task.Manual))

	event, endpoint, err := h.loadReferents(ctx, task)
	if err != nil {
		h.nack(ctx, job)
		return &PreDeliveryError{err: err}
	}

	if result := gateResult(event, endpoint); result != nil {
		return h.record(ctx, job, result)
	}

	result, err := h.forwarder.Forward(ctx, endpoint, event)
	if err != nil {
		h.nack(ctx, job)
		return &AttemptError{err: err}
	}
	return h.record(ctx, job, result)
}

func (h *messageHandler) loadReferents(ctx context.Context, task models.DeliveryTask) (*models.Event, *models.Endpoint, error) {
	var (
		event    *models.Event
		endpoint *models.Endpoint
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = h.store.RetrieveEvent(ctx, task.EventID)
		return err
	})
	g.Go(func() error {
		var err error
		endpoint, err = h.store.RetrieveEndpoint(ctx, task.EndpointID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return event, endpoint, nil
}

// gateResult returns a terminal failure for jobs that must not reach the
// forwarder: a referent deleted underneath the job, or forwarding not
// configured. A nil return means the attempt should proceed.
func gateResult(event *models.Event, endpoint *models.Endpoint) *forwarder.Result {
	destinationURL := ""
	if endpoint != nil {
		destinationURL = endpoint.ForwardURL
	}

	switch {
	case event == nil:
		return terminalFailure(destinationURL, errMessageEventNotFound)
	case endpoint == nil:
		return terminalFailure("", errMessageEndpointNotFound)
	case !endpoint.ForwardingEnabled || endpoint.ForwardURL == "":
		return terminalFailure(endpoint.ForwardURL, ErrMessageForwardingDisabled)
	}
	return nil
}

func terminalFailure(destinationURL, message string) *forwarder.Result {
	return &forwarder.Result{
		Status:         models.DeliveryStatusFailed,
		Retryable:      false,
		DestinationURL: destinationURL,
		ErrorMessage:   message,
	}
}

// record writes the delivery for an attempt outcome and settles the job:
// retryable outcomes with attempts left are rescheduled with backoff,
// retryable outcomes out of attempts fail the job, everything else
// completes it.
func (h *messageHandler) record(ctx context.Context, job *Job, result *forwarder.Result) error {
	task := job.Task

	delivery := &models.Delivery{
		ID:               idgen.Delivery(),
		EventID:          task.EventID,
		ParentDeliveryID: task.ParentDeliveryID,
		Status:           result.Status,
		DestinationURL:   result.DestinationURL,
		ResponseStatus:   result.ResponseStatus,
		ResponseHeaders:  result.ResponseHeaders,
		ResponseBody:     result.ResponseBody,
		DurationMs:       result.DurationMs,
		ErrorMessage:     result.ErrorMessage,
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.store.InsertDelivery(ctx, delivery); err != nil {
		if errors.Is(err, models.ErrDuplicateDelivery) {
			// Redelivery of a job whose attempt is already on the ledger.
			// The earlier process died between insert and settle; settle now.
			h.logger.Ctx(ctx).Info("delivery already recorded",
				zap.String("job_id", job.ID),
				zap.String("event_id", task.EventID),
				zap.Int("attempt", task.Attempt))
			if err := job.Complete(ctx); err != nil {
				return &PostDeliveryError{err: err}
			}
			return nil
		}
		h.nack(ctx, job)
		return &PostDeliveryError{err: err}
	}

	h.logger.Ctx(ctx).Info("delivery recorded",
		zap.String("delivery_id", delivery.ID),
		zap.String("event_id", task.EventID),
		zap.String("endpoint_id", task.EndpointID),
		zap.String("status", delivery.Status),
		zap.Int("attempt", task.Attempt),
		zap.Bool("manual", task.Manual))

	if result.Retryable && task.Attempt < h.retryMaxLimit {
		next := task
		next.Attempt++
		next.ParentDeliveryID = delivery.ID
		delay := h.retryBackoff.Duration(task.Attempt - 1)

		if err := job.Retry(ctx, next, delay); err != nil {
			// Requeued with the old payload; the duplicate insert on
			// redelivery settles it.
			h.nack(ctx, job)
			return &PostDeliveryError{err: err}
		}
		h.logger.Ctx(ctx).Info("delivery retry scheduled",
			zap.String("delivery_id", delivery.ID),
			zap.String("event_id", task.EventID),
			zap.String("endpoint_id", task.EndpointID),
			zap.Int("next_attempt", next.Attempt),
			zap.Duration("delay", delay))
		return nil
	}

	if result.Status == models.DeliveryStatusDelivered || !result.Retryable {
		if err := job.Complete(ctx); err != nil {
			return &PostDeliveryError{err: err}
		}
		return nil
	}

	h.logger.Ctx(ctx).Warn("delivery retries exhausted",
		zap.String("delivery_id", delivery.ID),
		zap.String("event_id", task.EventID),
		zap.String("endpoint_id", task.EndpointID),
		zap.Int("attempt", task.Attempt))
	if err := job.Fail(ctx); err != nil {
		return &PostDeliveryError{err: err}
	}
	return nil
}

func (h *messageHandler) nack(ctx context.Context, job *Job) {
	if err := job.Nack(ctx); err != nil {
		h.logger.Ctx(ctx).Error("failed to requeue delivery job",
			zap.Error(err),
			zap.String("job_id", job.ID))
	}
}
