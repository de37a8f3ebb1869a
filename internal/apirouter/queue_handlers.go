package apirouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/logging"
)

type QueueHandlers struct {
	logger     *logging.Logger
	deliveryMQ *deliverymq.Queue
}

func NewQueueHandlers(logger *logging.Logger, deliveryMQ *deliverymq.Queue) *QueueHandlers {
	return &QueueHandlers{
		logger:     logger,
		deliveryMQ: deliveryMQ,
	}
}

// Stats reports the scheduler's per-state job counts.
func (h *QueueHandlers) Stats(c *gin.Context) {
	stats, err := h.deliveryMQ.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	respond(c, http.StatusOK, "success", stats)
}
