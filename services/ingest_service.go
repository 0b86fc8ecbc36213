package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/models"
)

// DocumentIndexer embeds and stores chunks.
type DocumentIndexer interface {
	AddDocuments(ctx context.Context, chunks []models.DocumentChunk) error
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Files    int               `json:"files"`
	Chunks   int               `json:"chunks"`
	Failed   map[string]string `json:"failed,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

// IngestService turns PDFs into page-tagged chunks and hands them to the index.
type IngestService struct {
	extractor PageExtractor
	indexer   DocumentIndexer
	chunkSize int
	overlap   int
}

func NewIngestService(extractor PageExtractor, indexer DocumentIndexer, chunkSize, overlap int) *IngestService {
	return &IngestService{
		extractor: extractor,
		indexer:   indexer,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// BuildChunks cleans and chunks each page. Sections are "page-<n>-chunk-<i>".
func BuildChunks(document string, pages []PageText, chunkSize, overlap int) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	for _, p := range pages {
		page := p.Page
		for i, text := range ChunkText(CleanText(p.Text), chunkSize, overlap) {
			section := fmt.Sprintf("page-%d-chunk-%d", page, i)
			chunks = append(chunks, models.DocumentChunk{
				Text:     text,
				Document: document,
				Section:  &section,
				Page:     &page,
			})
		}
	}
	return chunks
}

// IngestFile indexes one PDF and returns the number of chunks added.
func (s *IngestService) IngestFile(ctx context.Context, path string) (int, error) {
	pages, err := s.extractor.ExtractPages(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("extracting %s: %w", filepath.Base(path), err)
	}
	chunks := BuildChunks(filepath.Base(path), pages, s.chunkSize, s.overlap)
	if len(chunks) == 0 {
		logger.Warn("No text extracted from PDF", "file", path)
		return 0, nil
	}
	if err := s.indexer.AddDocuments(ctx, chunks); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", filepath.Base(path), err)
	}
	return len(chunks), nil
}

// IngestDir indexes every *.pdf directly under dir in name order. A failing
// file is recorded in the report and the rest still run.
func (s *IngestService) IngestDir(ctx context.Context, dir string) (*IngestReport, error) {
	start := time.Now()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	report := &IngestReport{}
	if len(files) == 0 {
		logger.Warn("No PDFs found. Place manuals before ingesting.", "data_dir", dir)
		return report, nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := s.IngestFile(ctx, f)
		if err != nil {
			logger.Error("PDF ingestion failed", "file", f, "error", err)
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[filepath.Base(f)] = err.Error()
			continue
		}
		report.Files++
		report.Chunks += n
		logger.Info("PDF ingested", "file", f, "chunks", n)
	}

	report.Duration = time.Since(start)
	logger.Info("Ingestion complete",
		"files", report.Files,
		"chunks", report.Chunks,
		"failed", len(report.Failed),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
