package apirouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/pgstore"
)

type EventHandlers struct {
	logger *logging.Logger
	store  pgstore.Store
}

func NewEventHandlers(logger *logging.Logger, store pgstore.Store) *EventHandlers {
	return &EventHandlers{
		logger: logger,
		store:  store,
	}
}

// eventResponse overlays the stored raw body with its decoded projection.
// The embedded Event's Body is json:"-" so the projection is the only body
// the API exposes.
type eventResponse struct {
	*models.Event
	Body interface{} `json:"body"`
}

func newEventResponse(event *models.Event) eventResponse {
	return eventResponse{
		Event: event,
		Body:  models.ProjectEventBody(event.Body, event.Headers),
	}
}

func (h *EventHandlers) ListByEndpoint(c *gin.Context) {
	ctx := c.Request.Context()
	endpoint, err := h.store.RetrieveEndpoint(ctx, c.Param("endpointID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoint == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("endpoint"))
		return
	}

	params, errResponse := ParsePageParams(c)
	if errResponse != nil {
		AbortWithError(c, errResponse.Code, *errResponse)
		return
	}

	page, err := h.store.ListEvents(ctx, pgstore.ListEventsRequest{
		EndpointID: endpoint.ID,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	events := make([]eventResponse, 0, len(page.Data))
	for _, event := range page.Data {
		events = append(events, newEventResponse(event))
	}
	respond(c, http.StatusOK, "success", gin.H{
		"events":   events,
		"has_next": page.HasNext,
	})
}

func (h *EventHandlers) Retrieve(c *gin.Context) {
	event, err := h.store.RetrieveEvent(c.Request.Context(), c.Param("eventID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if event == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("event"))
		return
	}
	respond(c, http.StatusOK, "success", newEventResponse(event))
}
