package routes

import (
	"context"
	"net/http"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/models"
	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
)

// GPUController is the GPU lifecycle surface behind /gpu.
type GPUController interface {
	Start(ctx context.Context) (map[string]any, error)
	Stop(ctx context.Context) (map[string]any, error)
	Status(ctx context.Context) (*models.GPUStatus, error)
}

// SetupGPURoutes registers /gpu/start, /gpu/stop and /gpu/status. When the
// service could not be built, initErr is reported on every call.
func SetupGPURoutes(router *gin.Engine, svc GPUController, initErr error, mw ...gin.HandlerFunc) {
	g := router.Group("/gpu")
	g.Use(mw...)

	if initErr == nil && svc == nil {
		initErr = config.ErrGPUNotConfigured
	}
	available := func(c *gin.Context) bool {
		if initErr != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "gpu_not_configured", initErr.Error(), nil)
			return false
		}
		return true
	}

	g.POST("/start", func(c *gin.Context) {
		if !available(c) {
			return
		}
		data, err := svc.Start(c.Request.Context())
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
	})

	g.POST("/stop", func(c *gin.Context) {
		if !available(c) {
			return
		}
		data, err := svc.Stop(c.Request.Context())
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
	})

	g.GET("/status", func(c *gin.Context) {
		if !available(c) {
			return
		}
		status, err := svc.Status(c.Request.Context())
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}
