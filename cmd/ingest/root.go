package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/queue"
	"construction-safety-assistant/services"

	"github.com/spf13/cobra"
)

var (
	dataDir  string
	filePath string
	enqueue  bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index construction manuals into the vector store",
	Long: `Extracts text from every PDF in the data directory, splits each page into
overlapping word windows, embeds them and appends them to the configured index.
With --enqueue the work is handed to the ingestion worker instead.`,
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&dataDir, "data_dir", "", "directory containing PDFs (default CW_DATA_DIR)")
	rootCmd.Flags().StringVar(&filePath, "file", "", "ingest a single PDF instead of a directory")
	rootCmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the ingestion for the worker instead of running it here")
}

// newIngester is swapped in tests.
var newIngester = func(ctx context.Context, cfg *config.Config) (queue.Ingester, func(), error) {
	retriever, closeFn, err := services.OpenRetriever(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return services.NewIngestService(services.NewPDFExtractor(), retriever, cfg.ChunkSize, cfg.ChunkOverlap), closeFn, nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.InitLoggerTo(cmd.ErrOrStderr(), cfg.Debug)

	dir := dataDir
	if dir == "" {
		dir = cfg.DataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if enqueue {
		return enqueueIngest(ctx, cmd, cfg, dir)
	}

	ingester, closeFn, err := newIngester(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if filePath != "" {
		n, err := ingester.IngestFile(ctx, filePath)
		if err != nil {
			return err
		}
		cmd.Printf("Ingestion complete. Added %d chunks.\n", n)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	report, err := ingester.IngestDir(ctx, dir)
	if err != nil {
		return err
	}
	if report.Files == 0 && len(report.Failed) == 0 {
		cmd.Printf("No PDFs found in %s. Place manuals before ingesting.\n", dir)
		return nil
	}
	cmd.Printf("Ingestion complete. Added %d chunks from %d files.\n", report.Chunks, report.Files)
	if len(report.Failed) > 0 {
		for name, reason := range report.Failed {
			cmd.PrintErrf("  %s: %s\n", name, reason)
		}
		return fmt.Errorf("%d files failed", len(report.Failed))
	}
	return nil
}

func enqueueIngest(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dir string) error {
	if cfg.RedisURL == "" {
		return errors.New("--enqueue needs CW_REDIS_URL")
	}
	opt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		return err
	}
	enq := queue.NewEnqueuer(opt)
	defer enq.Close()

	id, err := enq.EnqueueIngest(ctx, filePath, dir)
	if err != nil {
		return err
	}
	cmd.Printf("Queued ingestion task %s.\n", id)
	return nil
}
