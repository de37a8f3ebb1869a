package apirouter

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/hookfreight/hookfreight/internal/deliverymq"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"github.com/hookfreight/hookfreight/internal/worker"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterConfig struct {
	ServiceName string
	GinMode     string
	// MaxBodyBytes caps capture request bodies. Zero applies the default.
	MaxBodyBytes int64
}

// NewRouter assembles the HTTP surface: the capture route at the root,
// /healthz, and the management API under /api/v1.
//
// The capture route is a single-segment wildcard, so every management route
// lives behind a static prefix. gin resolves static segments before route
// parameters, which keeps /healthz and /api/v1 out of the wildcard's reach.
func NewRouter(
	cfg RouterConfig,
	logger *logging.Logger,
	store pgstore.Store,
	deliveryMQ *deliverymq.Queue,
	healthTracker *worker.HealthTracker,
) http.Handler {
	// Only set mode from config if we're not in test mode
	if gin.Mode() != gin.TestMode {
		gin.SetMode(cfg.GinMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(LoggerMiddleware(logger))
	r.Use(ErrorHandlerMiddleware())

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}

	r.NoRoute(func(c *gin.Context) {
		respond(c, http.StatusNotFound, "not_found", nil)
	})

	r.GET("/healthz", healthHandler(healthTracker))

	ingestHandlers := NewIngestHandlers(logger, store, deliveryMQ, cfg.MaxBodyBytes)
	r.Any("/:hookToken", ingestHandlers.Capture)

	appHandlers := NewAppHandlers(logger, store)
	endpointHandlers := NewEndpointHandlers(logger, store)
	eventHandlers := NewEventHandlers(logger, store)
	deliveryHandlers := NewDeliveryHandlers(logger, store, deliveryMQ)
	queueHandlers := NewQueueHandlers(logger, deliveryMQ)

	apiRouter := r.Group("/api/v1")

	apiRouter.POST("/apps", appHandlers.Create)
	apiRouter.GET("/apps", appHandlers.List)
	apiRouter.GET("/apps/:appID", appHandlers.Retrieve)
	apiRouter.PATCH("/apps/:appID", appHandlers.Update)
	apiRouter.DELETE("/apps/:appID", appHandlers.Delete)

	apiRouter.POST("/apps/:appID/endpoints", endpointHandlers.Create)
	apiRouter.GET("/apps/:appID/endpoints", endpointHandlers.List)
	apiRouter.GET("/endpoints/:endpointID", endpointHandlers.Retrieve)
	apiRouter.PATCH("/endpoints/:endpointID", endpointHandlers.Update)
	apiRouter.DELETE("/endpoints/:endpointID", endpointHandlers.Delete)
	apiRouter.GET("/endpoints/:endpointID/events", eventHandlers.ListByEndpoint)

	apiRouter.GET("/events/:eventID", eventHandlers.Retrieve)
	apiRouter.GET("/events/:eventID/deliveries", deliveryHandlers.ListByEvent)

	apiRouter.GET("/deliveries/:deliveryID", deliveryHandlers.Retrieve)
	apiRouter.POST("/deliveries/:deliveryID/retry", deliveryHandlers.Retry)

	apiRouter.GET("/queue/stats", queueHandlers.Stats)

	if gin.Mode() == gin.DebugMode {
		registerDevRoutes(apiRouter)
	}

	return r
}

// respond renders the success envelope. Error paths go through
// AbortWithError and the error handler middleware instead.
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
	})
}

func healthHandler(tracker *worker.HealthTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			respond(c, http.StatusOK, "healthy", nil)
			return
		}
		status := tracker.GetStatus()
		if tracker.IsHealthy() {
			respond(c, http.StatusOK, "healthy", status)
			return
		}
		respond(c, http.StatusServiceUnavailable, "unhealthy", status)
	}
}

func registerDevRoutes(apiRouter *gin.RouterGroup) {
	apiRouter.GET("/dev/err/panic", func(c *gin.Context) {
		panic("test panic error")
	})

	apiRouter.GET("/dev/err/internal", func(c *gin.Context) {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(errors.New("test internal error")))
	})
}
