package routes

import (
	"errors"

	"construction-safety-assistant/internal/ai"
	"construction-safety-assistant/internal/gpu"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/middleware"
	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
)

// respondBackendError maps dependency failures to 503 and everything else to 500.
func respondBackendError(c *gin.Context, err error) {
	var (
		transport *ai.TransportError
		shape     *ai.ResponseShapeError
		pod       *gpu.APIError
	)
	switch {
	case errors.As(err, &shape):
		utils.RespondWithServiceUnavailable(c, "A backend service returned an invalid response. Please try again later.")
	case errors.As(err, &transport), errors.As(err, &pod):
		utils.RespondWithServiceUnavailable(c, "A backend service is unavailable. Please try again later.")
	default:
		logger.Error("Unhandled request error", "request_id", middleware.GetRequestID(c), "error", err)
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
