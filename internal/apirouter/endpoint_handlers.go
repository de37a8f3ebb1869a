package apirouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"go.uber.org/zap"
)

type EndpointHandlers struct {
	logger *logging.Logger
	store  pgstore.Store
}

func NewEndpointHandlers(logger *logging.Logger, store pgstore.Store) *EndpointHandlers {
	return &EndpointHandlers{
		logger: logger,
		store:  store,
	}
}

// Authentication is raw JSON so null (clear) and absent (unchanged) stay
// distinguishable on partial updates. The timeout range is checked by hand:
// omitempty on a pointer skips a dereferenced zero, which would let an
// explicit 0 through.
type createEndpointRequest struct {
	ForwardURL        string          `json:"forward_url" binding:"omitempty,url"`
	ForwardingEnabled *bool           `json:"forwarding_enabled"`
	Authentication    json.RawMessage `json:"authentication"`
	HTTPTimeoutMs     *int            `json:"http_timeout_ms"`
}

type updateEndpointRequest struct {
	ForwardURL        *string         `json:"forward_url" binding:"omitempty,url"`
	ForwardingEnabled *bool           `json:"forwarding_enabled"`
	Authentication    json.RawMessage `json:"authentication"`
	HTTPTimeoutMs     *int            `json:"http_timeout_ms"`
	IsActive          *bool           `json:"is_active"`
}

func validateHTTPTimeoutMs(timeoutMs int) *ErrorResponse {
	if timeoutMs >= 1 && timeoutMs <= models.MaxHTTPTimeoutMs {
		return nil
	}
	errResponse := NewErrValidation(FieldError{
		Field:    "http_timeout_ms",
		Code:     "out_of_range",
		Message:  fmt.Sprintf("http_timeout_ms must be between 1 and %d", models.MaxHTTPTimeoutMs),
		Expected: fmt.Sprintf("1..%d", models.MaxHTTPTimeoutMs),
		Received: strconv.Itoa(timeoutMs),
	})
	return &errResponse
}

func (h *EndpointHandlers) Create(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := h.store.RetrieveApp(ctx, c.Param("appID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if app == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("app"))
		return
	}

	var req createEndpointRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithValidationError(c, err)
			return
		}
	}

	endpoint := models.NewEndpoint(app.ID)
	endpoint.ForwardURL = req.ForwardURL
	if req.ForwardingEnabled != nil {
		endpoint.ForwardingEnabled = *req.ForwardingEnabled
	} else {
		// A forward URL at creation implies intent to forward.
		endpoint.ForwardingEnabled = req.ForwardURL != ""
	}
	if req.HTTPTimeoutMs != nil {
		if errResponse := validateHTTPTimeoutMs(*req.HTTPTimeoutMs); errResponse != nil {
			AbortWithError(c, errResponse.Code, *errResponse)
			return
		}
		endpoint.HTTPTimeoutMs = *req.HTTPTimeoutMs
	}
	if len(req.Authentication) > 0 {
		auth, errResponse := parseEndpointAuth(req.Authentication)
		if errResponse != nil {
			AbortWithError(c, errResponse.Code, *errResponse)
			return
		}
		endpoint.Authentication = auth
	}

	if err := h.store.CreateEndpoint(ctx, &endpoint); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	h.logger.Ctx(ctx).Info("endpoint created",
		zap.String("endpoint_id", endpoint.ID),
		zap.String("app_id", app.ID))
	respond(c, http.StatusCreated, "endpoint_created", endpoint)
}

func (h *EndpointHandlers) List(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := h.store.RetrieveApp(ctx, c.Param("appID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if app == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("app"))
		return
	}

	endpoints, err := h.store.ListEndpoints(ctx, app.ID)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoints == nil {
		endpoints = []*models.Endpoint{}
	}
	respond(c, http.StatusOK, "success", endpoints)
}

func (h *EndpointHandlers) Retrieve(c *gin.Context) {
	endpoint, err := h.store.RetrieveEndpoint(c.Request.Context(), c.Param("endpointID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoint == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("endpoint"))
		return
	}
	respond(c, http.StatusOK, "success", endpoint)
}

// Update applies a partial update. Absent fields are unchanged; hook_token
// is immutable and not accepted.
func (h *EndpointHandlers) Update(c *gin.Context) {
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

	var req updateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithValidationError(c, err)
		return
	}

	if req.ForwardURL != nil {
		endpoint.ForwardURL = *req.ForwardURL
	}
	if req.ForwardingEnabled != nil {
		endpoint.ForwardingEnabled = *req.ForwardingEnabled
	}
	if req.HTTPTimeoutMs != nil {
		if errResponse := validateHTTPTimeoutMs(*req.HTTPTimeoutMs); errResponse != nil {
			AbortWithError(c, errResponse.Code, *errResponse)
			return
		}
		endpoint.HTTPTimeoutMs = *req.HTTPTimeoutMs
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}
	if len(req.Authentication) > 0 {
		auth, errResponse := parseEndpointAuth(req.Authentication)
		if errResponse != nil {
			AbortWithError(c, errResponse.Code, *errResponse)
			return
		}
		endpoint.Authentication = auth
	}
	endpoint.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateEndpoint(ctx, endpoint); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	respond(c, http.StatusOK, "endpoint_updated", endpoint)
}

// Delete removes the endpoint and, transactionally, its events and
// deliveries. The hook token goes dark immediately.
func (h *EndpointHandlers) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	endpointID := c.Param("endpointID")

	endpoint, err := h.store.RetrieveEndpoint(ctx, endpointID)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if endpoint == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("endpoint"))
		return
	}

	if err := h.store.DeleteEndpoint(ctx, endpointID); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	h.logger.Ctx(ctx).Info("endpoint deleted",
		zap.String("endpoint_id", endpointID),
		zap.String("app_id", endpoint.AppID))
	respond(c, http.StatusOK, "endpoint_deleted", nil)
}

type endpointAuthInput struct {
	HeaderName  string `json:"header_name"`
	HeaderValue string `json:"header_value"`
}

// parseEndpointAuth interprets the raw authentication value: JSON null
// clears the auth header, an object sets it and requires both fields.
func parseEndpointAuth(raw json.RawMessage) (*models.EndpointAuth, *ErrorResponse) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var input endpointAuthInput
	if err := json.Unmarshal(raw, &input); err != nil {
		errResponse := NewErrValidation(FieldError{
			Field:    "authentication",
			Code:     "invalid_type",
			Message:  "authentication must be an object",
			Expected: "object",
		})
		errResponse.Err = err
		return nil, &errResponse
	}

	var fields []FieldError
	if input.HeaderName == "" {
		fields = append(fields, FieldError{
			Field:   "authentication.header_name",
			Code:    "required",
			Message: "authentication.header_name is required",
		})
	}
	if input.HeaderValue == "" {
		fields = append(fields, FieldError{
			Field:   "authentication.header_value",
			Code:    "required",
			Message: "authentication.header_value is required",
		})
	}
	if len(fields) > 0 {
		errResponse := NewErrValidation(fields...)
		return nil, &errResponse
	}

	return &models.EndpointAuth{
		HeaderName:  input.HeaderName,
		HeaderValue: input.HeaderValue,
	}, nil
}
