package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"construction-safety-assistant/internal/logger"

	"github.com/ledongthuc/pdf"
)

const maxPDFBytes = 200 << 20

// PageText is the plain text of one PDF page; Page is 1-based.
type PageText struct {
	Page int
	Text string
}

// PageExtractor yields per-page text of a document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, filePath string) ([]PageText, error)
}

// PDFExtractor reads text layers with ledongthuc/pdf. Scanned pages without a
// text layer come back empty and are skipped.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) ExtractPages(ctx context.Context, filePath string) ([]PageText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Cap extremely large files to avoid OOM
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > maxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var pages []PageText
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "file", filePath, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, PageText{Page: i, Text: text})
	}
	return pages, nil
}
