package apirouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"go.uber.org/zap"
)

type DeliveryHandlers struct {
	logger     *logging.Logger
	store      pgstore.Store
	deliveryMQ *deliverymq.Queue
}

func NewDeliveryHandlers(
	logger *logging.Logger,
	store pgstore.Store,
	deliveryMQ *deliverymq.Queue,
) *DeliveryHandlers {
	return &DeliveryHandlers{
		logger:     logger,
		store:      store,
		deliveryMQ: deliveryMQ,
	}
}

// deliveryResponse overlays the stored response bytes with their decoded
// projection, mirroring eventResponse.
type deliveryResponse struct {
	*models.Delivery
	ResponseBody interface{} `json:"response_body"`
}

func newDeliveryResponse(delivery *models.Delivery) deliveryResponse {
	return deliveryResponse{
		Delivery:     delivery,
		ResponseBody: models.ProjectResponseBody(delivery.ResponseBody),
	}
}

func (h *DeliveryHandlers) ListByEvent(c *gin.Context) {
	ctx := c.Request.Context()
	event, err := h.store.RetrieveEvent(ctx, c.Param("eventID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if event == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("event"))
		return
	}

	params, errResponse := ParsePageParams(c)
	if errResponse != nil {
		AbortWithError(c, errResponse.Code, *errResponse)
		return
	}

	deliveries, err := h.store.ListDeliveries(ctx, pgstore.ListDeliveriesRequest{
		EventID: event.ID,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	data := make([]deliveryResponse, 0, len(deliveries))
	for _, delivery := range deliveries {
		data = append(data, newDeliveryResponse(delivery))
	}
	respond(c, http.StatusOK, "success", data)
}

func (h *DeliveryHandlers) Retrieve(c *gin.Context) {
	delivery, err := h.store.RetrieveDelivery(c.Request.Context(), c.Param("deliveryID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if delivery == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("delivery"))
		return
	}
	respond(c, http.StatusOK, "success", newDeliveryResponse(delivery))
}

// Retry starts a fresh delivery chain rooted at a recorded delivery. The
// outcome is recorded by the worker, so no gating on the endpoint's current
// forwarding state happens here.
func (h *DeliveryHandlers) Retry(c *gin.Context) {
	ctx := c.Request.Context()

	delivery, err := h.store.RetrieveDelivery(ctx, c.Param("deliveryID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if delivery == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("delivery"))
		return
	}

	event, err := h.store.RetrieveEvent(ctx, delivery.EventID)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if event == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("event"))
		return
	}

	endpoint, err := h.store.RetrieveEndpoint(ctx, event.EndpointID)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoint == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("endpoint"))
		return
	}

	task := models.NewManualDeliveryTask(event.ID, endpoint.ID, delivery.ID)
	if err := h.deliveryMQ.Publish(ctx, task); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	h.logger.Ctx(ctx).Info("manual retry enqueued",
		zap.String("job_id", task.JobID()),
		zap.String("delivery_id", delivery.ID),
		zap.String("event_id", event.ID))
	respond(c, http.StatusAccepted, "delivery_retry_enqueued", gin.H{
		"job_id": task.JobID(),
	})
}
