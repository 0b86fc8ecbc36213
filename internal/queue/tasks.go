package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/services"

	"github.com/hibiken/asynq"
)

const (
	TaskIngestPDF = "ingest:pdf"
	TaskIngestDir = "ingest:dir"

	// IngestQueue is served by a single-concurrency worker.
	IngestQueue = "ingest"
)

type IngestPDFPayload struct {
	FilePath string `json:"file_path"`
}

type IngestDirPayload struct {
	DataDir string `json:"data_dir"`
}

// Task creators
func NewIngestPDFTask(filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPDFPayload{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestPDF,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(IngestQueue),
	), nil
}

func NewIngestDirTask(dataDir string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestDirPayload{DataDir: dataDir})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestDir,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(time.Hour),
		asynq.Queue(IngestQueue),
	), nil
}

// Ingester is the ingestion surface the handlers drive.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (int, error)
	IngestDir(ctx context.Context, dir string) (*services.IngestReport, error)
}

// Task handlers
type TaskProcessor struct {
	ingester Ingester
}

func NewTaskProcessor(ingester Ingester) *TaskProcessor {
	return &TaskProcessor{ingester: ingester}
}

// Register wires the handlers into mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestPDF, p.IngestPDF)
	mux.HandleFunc(TaskIngestDir, p.IngestDir)
}

func (p *TaskProcessor) IngestPDF(ctx context.Context, t *asynq.Task) error {
	var payload IngestPDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.FilePath == "" {
		return fmt.Errorf("invalid ingest payload: %w", asynq.SkipRetry)
	}
	if _, err := os.Stat(payload.FilePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pdf %s not found: %w", payload.FilePath, asynq.SkipRetry)
	}

	logger.Info("Processing PDF ingestion task", "file", payload.FilePath)
	n, err := p.ingester.IngestFile(ctx, payload.FilePath)
	if err != nil {
		return err
	}
	logger.Info("PDF ingestion task complete", "file", payload.FilePath, "chunks", n)
	return nil
}

func (p *TaskProcessor) IngestDir(ctx context.Context, t *asynq.Task) error {
	var payload IngestDirPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.DataDir == "" {
		return fmt.Errorf("invalid ingest payload: %w", asynq.SkipRetry)
	}

	report, err := p.ingester.IngestDir(ctx, payload.DataDir)
	if err != nil {
		return err
	}
	logger.Info("Directory ingestion task complete",
		"data_dir", payload.DataDir,
		"files", report.Files,
		"chunks", report.Chunks,
		"failed", len(report.Failed),
	)
	return nil
}

// Enqueuer submits ingestion tasks from the API server.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// EnqueueIngest queues a single PDF when filePath is set, otherwise the whole directory.
func (e *Enqueuer) EnqueueIngest(ctx context.Context, filePath, dataDir string) (string, error) {
	var (
		task *asynq.Task
		err  error
	)
	if filePath != "" {
		task, err = NewIngestPDFTask(filePath)
	} else {
		task, err = NewIngestDirTask(dataDir)
	}
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
