package apirouter

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps capture request bodies at 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

type IngestHandlers struct {
	logger       *logging.Logger
	store        pgstore.Store
	deliveryMQ   *deliverymq.Queue
	maxBodyBytes int64
}

func NewIngestHandlers(
	logger *logging.Logger,
	store pgstore.Store,
	deliveryMQ *deliverymq.Queue,
	maxBodyBytes int64,
) *IngestHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &IngestHandlers{
		logger:       logger,
		store:        store,
		deliveryMQ:   deliveryMQ,
		maxBodyBytes: maxBodyBytes,
	}
}

// Capture receives an inbound webhook on ANY /:hookToken, stores it verbatim,
// and schedules forwarding. The 200 does not wait on the enqueue; the stored
// event is the recovery point if scheduling fails.
func (h *IngestHandlers) Capture(c *gin.Context) {
	token := c.Param("hookToken")
	if !idgen.ValidHookToken(token) {
		respond(c, http.StatusNotFound, "not_found", nil)
		return
	}

	method := strings.ToUpper(c.Request.Method)
	if !models.MethodAllowed(method) {
		respond(c, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	ctx := c.Request.Context()
	endpoint, err := h.store.RetrieveEndpointByToken(ctx, token)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoint == nil || !endpoint.IsActive {
		respond(c, http.StatusNotFound, "endpoint_not_found", nil)
		return
	}

	body, ok := h.readBody(c)
	if !ok {
		return
	}

	event := models.Event{
		ID:          idgen.Event(),
		EndpointID:  endpoint.ID,
		ReceivedAt:  time.Now().UTC(),
		Method:      method,
		OriginalURL: originalURL(c.Request),
		SourceURL:   sourceURL(c.Request),
		Path:        c.Request.URL.Path,
		Query:       c.Request.URL.Query(),
		Headers:     models.NewHeaders(c.Request.Header),
		Body:        body,
		SourceIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		SizeBytes:   len(body),
	}
	if err := h.store.InsertEvent(ctx, &event); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	// Enqueue even when forwarding is disabled; the worker records the
	// outcome so the delivery log stays complete.
	if err := h.deliveryMQ.Publish(ctx, models.NewDeliveryTask(event.ID, endpoint.ID)); err != nil {
		h.logger.Ctx(ctx).Error("failed to enqueue delivery job",
			zap.String("event_id", event.ID),
			zap.String("endpoint_id", endpoint.ID),
			zap.Error(err))
	}

	respond(c, http.StatusOK, "event_created", nil)
}

func (h *IngestHandlers) readBody(c *gin.Context) ([]byte, bool) {
	if c.Request.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, NewErrBadRequest(errors.New("failed to read request body")))
		return nil, false
	}
	if int64(len(body)) > h.maxBodyBytes {
		respond(c, http.StatusRequestEntityTooLarge, "payload_too_large", nil)
		return nil, false
	}
	return body, true
}

// originalURL reconstructs the URL the producer called. The first token of
// X-Forwarded-Proto/Host wins when a proxy sits in front; otherwise the
// request's own host and TLS state decide.
func originalURL(r *http.Request) string {
	scheme := forwardedToken(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	host := forwardedToken(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// forwardedToken extracts the first comma-separated value, trimmed. Proxies
// append to X-Forwarded-* so the first entry is the client-facing one.
func forwardedToken(v string) string {
	if i := strings.Index(v, ","); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// sourceURL guesses where the webhook came from: Origin, then Referer, then
// the producer-set X-Webhook-Source. Empty when none are present.
func sourceURL(r *http.Request) string {
	for _, name := range []string{"Origin", "Referer", "X-Webhook-Source"} {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}
