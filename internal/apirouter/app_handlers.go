package apirouter

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookfreight/hookfreight/internal/logging"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/pgstore"
	"go.uber.org/zap"
)

type AppHandlers struct {
	logger *logging.Logger
	store  pgstore.Store
}

func NewAppHandlers(logger *logging.Logger, store pgstore.Store) *AppHandlers {
	return &AppHandlers{
		logger: logger,
		store:  store,
	}
}

type createAppRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

type updateAppRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

func (h *AppHandlers) Create(c *gin.Context) {
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithValidationError(c, err)
		return
	}

	ctx := c.Request.Context()
	app := models.NewApp(req.Name)
	if err := h.store.CreateApp(ctx, &app); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	h.logger.Ctx(ctx).Info("app created", zap.String("app_id", app.ID))
	respond(c, http.StatusCreated, "app_created", app)
}

func (h *AppHandlers) List(c *gin.Context) {
	apps, err := h.store.ListApps(c.Request.Context())
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if apps == nil {
		apps = []*models.App{}
	}
	respond(c, http.StatusOK, "success", apps)
}

func (h *AppHandlers) Retrieve(c *gin.Context) {
	app, err := h.store.RetrieveApp(c.Request.Context(), c.Param("appID"))
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if app == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("app"))
		return
	}
	respond(c, http.StatusOK, "success", app)
}

func (h *AppHandlers) Update(c *gin.Context) {
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

	var req updateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithValidationError(c, err)
		return
	}

	app.Name = req.Name
	app.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateApp(ctx, app); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	respond(c, http.StatusOK, "app_updated", app)
}

// Delete removes the app and, transactionally, its endpoints and their
// captured traffic.
func (h *AppHandlers) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	appID := c.Param("appID")

	app, err := h.store.RetrieveApp(ctx, appID)
	if err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}
	if app == nil {
		AbortWithError(c, http.StatusNotFound, NewErrNotFound("app"))
		return
	}

	if err := h.store.DeleteApp(ctx, appID); err != nil {
		AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
		return
	}

	h.logger.Ctx(ctx).Info("app deleted", zap.String("app_id", appID))
	respond(c, http.StatusOK, "app_deleted", nil)
}
