package main

import (
	"context"
	"log"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/queue"
	"construction-safety-assistant/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.RedisURL == "" {
		log.Fatal("CW_REDIS_URL is required for the ingestion worker")
	}
	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	retriever, closeRetriever, err := services.OpenRetriever(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to open retriever:", err)
	}
	defer closeRetriever()

	ingester := services.NewIngestService(services.NewPDFExtractor(), retriever, cfg.ChunkSize, cfg.ChunkOverlap)

	// One task at a time; the index is re-read before every write
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				queue.IngestQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(ingester).Register(mux)

	logger.Info("Starting ingestion worker",
		"queue", queue.IngestQueue,
		"vector_store", cfg.VectorStore,
		"index_size", retriever.IndexSize(),
	)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
