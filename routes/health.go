package routes

import (
	"net/http"

	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthDeps are the optional dependencies /ready reports on.
type HealthDeps struct {
	IndexSize func() int
	Mongo     *mongo.Client
	Redis     *redis.Client
}

func SetupHealthRoutes(router *gin.Engine, deps HealthDeps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		checks := gin.H{}
		ready := true
		if deps.Mongo != nil {
			if err := deps.Mongo.Ping(ctx, nil); err != nil {
				checks["mongo"] = "unavailable"
				ready = false
			} else {
				checks["mongo"] = "ok"
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable"
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		}

		body := gin.H{"status": "ready", "checks": checks}
		if deps.IndexSize != nil {
			body["index_size"] = deps.IndexSize()
		}
		if !ready {
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})
}
