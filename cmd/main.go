package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"construction-safety-assistant/internal/ai"
	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/gpu"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/queue"
	"construction-safety-assistant/internal/safety"
	"construction-safety-assistant/internal/scheduler"
	"construction-safety-assistant/internal/telemetry"
	"construction-safety-assistant/middleware"
	"construction-safety-assistant/routes"
	"construction-safety-assistant/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const indexReloadTag = "index-reload"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Retrieval index and embedder
	retriever, closeRetriever, err := services.OpenRetriever(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to open retriever:", err)
	}
	defer closeRetriever()

	detector := safety.NewDetector(cfg.CrisisKeywords)
	chatService := services.NewChatService(detector, retriever, ai.NewModelClient(cfg, metrics), cfg.RetrievalK).
		WithMetrics(metrics)

	// Chat audit log (optional)
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	var chatLogs *services.ChatLogStore
	if mongoClient != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		chatLogs = services.NewChatLogStore(mongoClient.Database(cfg.DBName), 2, 256)
		chatLogs.Start()
		defer chatLogs.Stop()
		chatService.WithRecorder(chatLogs)
	} else {
		logger.Warn("CW_MONGO_URI not set, chat audit log disabled")
	}

	// Redis: rate limiting and the ingestion queue (optional)
	var rdb *redis.Client
	var enqueuer *queue.Enqueuer
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer rdb.Close()

		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Invalid Redis configuration:", err)
		}
		enqueuer = queue.NewEnqueuer(redisOpt)
		defer enqueuer.Close()
	} else {
		logger.Warn("CW_REDIS_URL not set, rate limiting disabled and ingestion runs in-process")
	}

	sched := scheduler.NewScheduler()
	sched.Start()
	defer sched.Stop()

	if cfg.IndexReloadMinutes > 0 {
		err := sched.ScheduleInterval(indexReloadTag, time.Duration(cfg.IndexReloadMinutes)*time.Minute, func() {
			reloaded, err := retriever.Reload()
			if err != nil {
				logger.Error("Scheduled index reload failed", "error", err)
				return
			}
			if reloaded {
				logger.Info("Index reloaded", "index_size", retriever.IndexSize())
			}
		})
		if err != nil {
			log.Fatal("Failed to schedule index reload:", err)
		}
	}

	// GPU control is optional; without credentials its routes report gpu_not_configured
	var gpuController routes.GPUController
	gpuService, gpuErr := gpu.New(cfg, sched, metrics)
	if gpuErr == nil {
		gpuController = gpuService
	} else {
		logger.Warn("GPU control disabled", "reason", gpuErr.Error())
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))

	// Setup routes
	routes.SetupHealthRoutes(router, routes.HealthDeps{
		IndexSize: retriever.IndexSize,
		Mongo:     mongoClient,
		Redis:     rdb,
	})
	routes.SetupChatRoutes(router, chatService, middleware.RateLimitMiddleware(rdb, cfg))

	adminAuth := middleware.AdminAuth(cfg.AdminJWTSecret)
	routes.SetupGPURoutes(router, gpuController, gpuErr, adminAuth)

	adminDeps := routes.AdminDeps{
		Ingester: services.NewIngestService(services.NewPDFExtractor(), retriever, cfg.ChunkSize, cfg.ChunkOverlap),
		Index:    retriever,
		DataDir:  cfg.DataDir,
	}
	if enqueuer != nil {
		adminDeps.Enqueuer = enqueuer
	}
	if chatLogs != nil {
		adminDeps.Logs = chatLogs
	}
	routes.SetupAdminRoutes(router, adminDeps, adminAuth)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"vector_store", cfg.VectorStore,
			"index_size", retriever.IndexSize(),
			"model", cfg.ModelName,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
