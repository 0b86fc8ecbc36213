package routes

import (
	"context"
	"net/http"

	"construction-safety-assistant/models"
	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
)

// ChatHandler answers one chat request.
type ChatHandler interface {
	HandleChat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// SetupChatRoutes registers POST /v1/chat. Extra middleware (rate limiting) runs
// on this route only.
func SetupChatRoutes(router *gin.Engine, chat ChatHandler, mw ...gin.HandlerFunc) {
	v1 := router.Group("/v1")
	v1.Use(mw...)

	v1.POST("/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithInvalidInput(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if err := req.Normalize(); err != nil {
			utils.RespondWithInvalidInput(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := chat.HandleChat(c.Request.Context(), &req)
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}
