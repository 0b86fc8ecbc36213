package routes

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/queue"
	"construction-safety-assistant/middleware"
	"construction-safety-assistant/models"
	"construction-safety-assistant/services"
	"construction-safety-assistant/utils"

	"github.com/gin-gonic/gin"
)

type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, filePath, dataDir string) (string, error)
}

type IndexReloader interface {
	Reload() (bool, error)
	IndexSize() int
}

type ChatLogQuerier interface {
	services.ChatLogReader
	OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

// AdminDeps wires the admin routes. Enqueuer and Logs are optional.
type AdminDeps struct {
	Enqueuer IngestEnqueuer
	Ingester queue.Ingester
	Index    IndexReloader
	Logs     ChatLogQuerier
	DataDir  string
}

type ingestRequest struct {
	// File is a PDF name inside the data directory; empty means the whole directory.
	File string `json:"file"`
}

func SetupAdminRoutes(router *gin.Engine, deps AdminDeps, mw ...gin.HandlerFunc) {
	admin := router.Group("/admin")
	admin.Use(mw...)

	admin.POST("/ingest", func(c *gin.Context) {
		var req ingestRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithInvalidInput(c, "Invalid request data", gin.H{"error": err.Error()})
				return
			}
		}
		var filePath string
		if req.File != "" {
			filePath = filepath.Join(deps.DataDir, filepath.Base(req.File))
		}

		if deps.Enqueuer != nil {
			id, err := deps.Enqueuer.EnqueueIngest(c.Request.Context(), filePath, deps.DataDir)
			if err != nil {
				logger.Error("Failed to enqueue ingestion", "request_id", middleware.GetRequestID(c), "error", err)
				utils.RespondWithServiceUnavailable(c, "Ingestion queue is unavailable")
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"task_id": id, "status": "queued"})
			return
		}

		if deps.Ingester == nil {
			utils.RespondWithServiceUnavailable(c, "Ingestion is not configured")
			return
		}
		if filePath != "" {
			if _, err := os.Stat(filePath); err != nil {
				utils.RespondWithNotFound(c, "PDF not found in data directory")
				return
			}
			n, err := deps.Ingester.IngestFile(c.Request.Context(), filePath)
			if err != nil {
				respondBackendError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"files": 1, "chunks": n, "index_size": deps.Index.IndexSize()})
			return
		}
		report, err := deps.Ingester.IngestDir(c.Request.Context(), deps.DataDir)
		if err != nil {
			respondBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"files":      report.Files,
			"chunks":     report.Chunks,
			"failed":     report.Failed,
			"index_size": deps.Index.IndexSize(),
		})
	})

	admin.POST("/index/reload", func(c *gin.Context) {
		reloaded, err := deps.Index.Reload()
		if err != nil {
			logger.Error("Index reload failed", "request_id", middleware.GetRequestID(c), "error", err)
			utils.RespondWithInternalError(c, "Index reload failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reloaded": reloaded, "index_size": deps.Index.IndexSize()})
	})

	logsAvailable := func(c *gin.Context) bool {
		if deps.Logs == nil {
			utils.RespondWithServiceUnavailable(c, "Chat audit log is not configured")
			return false
		}
		return true
	}

	admin.GET("/chat-logs", func(c *gin.Context) {
		if !logsAvailable(c) {
			return
		}
		filter, err := parseChatLogFilter(c, 100)
		if err != nil {
			utils.RespondWithInvalidInput(c, err.Error(), nil)
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		logs, err := deps.Logs.List(ctx, filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list chat logs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
	})

	admin.GET("/chat-logs/summary", func(c *gin.Context) {
		if !logsAvailable(c) {
			return
		}
		filter, err := parseChatLogFilter(c, 0)
		if err != nil {
			utils.RespondWithInvalidInput(c, err.Error(), nil)
			return
		}
		if filter.Since.IsZero() {
			filter.Since = time.Now().Add(-24 * time.Hour)
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		counts, err := deps.Logs.OutcomeCounts(ctx, filter.Since)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to summarize chat logs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"since": filter.Since.UTC(), "outcomes": counts})
	})

	admin.GET("/chat-logs/export", func(c *gin.Context) {
		if !logsAvailable(c) {
			return
		}
		filter, err := parseChatLogFilter(c, 0)
		if err != nil {
			utils.RespondWithInvalidInput(c, err.Error(), nil)
			return
		}
		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		filename := fmt.Sprintf("chat_logs_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
		c.Header("Content-Type", services.XLSXMIMEType)
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Status(http.StatusOK)
		if _, err := services.NewExportService(deps.Logs).WriteXLSX(ctx, filter, c.Writer); err != nil {
			logger.Error("Chat log export failed", "request_id", middleware.GetRequestID(c), "error", err)
			if !c.Writer.Written() {
				utils.RespondWithInternalError(c, "Failed to export chat logs", nil)
			}
		}
	})
}

func parseChatLogFilter(c *gin.Context, defaultLimit int64) (models.ChatLogFilter, error) {
	filter := models.ChatLogFilter{
		SafetyNotes: c.Query("safety_notes"),
		Limit:       defaultLimit,
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = n
	}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("since must be an RFC3339 timestamp")
		}
		filter.Since = t
	}
	return filter, nil
}
