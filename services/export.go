package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/models"

	"github.com/xuri/excelize/v2"
)

const (
	chatLogSheet  = "Chat Logs"
	summarySheet  = "Summary"
	maxExportRows = 50000
	exportTimeFmt = "2006-01-02 15:04:05"
	XLSXMIMEType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var chatLogHeaders = []string{
	"ID", "Request ID", "Timestamp", "Mode", "Outcome", "Safety Notes",
	"Citations", "Reply Chars", "Latency (ms)", "Query Digest",
}

// ExportService renders the chat audit log as an Excel workbook.
type ExportService struct {
	logs ChatLogReader
}

func NewExportService(logs ChatLogReader) *ExportService {
	return &ExportService{logs: logs}
}

// WriteXLSX writes matching entries plus an outcome summary sheet to w and
// returns the number of rows exported.
func (es *ExportService) WriteXLSX(ctx context.Context, filter models.ChatLogFilter, w io.Writer) (int, error) {
	if filter.Limit <= 0 || filter.Limit > maxExportRows {
		filter.Limit = maxExportRows
	}
	entries, err := es.logs.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", chatLogSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range chatLogHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(chatLogSheet, cell, header)
	}

	outcomes := map[string]int{}
	var order []string
	for rowIdx, e := range entries {
		row := rowIdx + 2
		values := []interface{}{
			e.ID, e.RequestID, e.Timestamp.UTC().Format(exportTimeFmt), e.Mode, e.Outcome,
			e.SafetyNotes, citationSummary(e.Citations), e.ReplyChars, e.LatencyMs, e.QueryDigest,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(chatLogSheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if _, seen := outcomes[e.Outcome]; !seen {
			order = append(order, e.Outcome)
		}
		outcomes[e.Outcome]++
	}
	f.SetColWidth(chatLogSheet, "A", "J", 18)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return 0, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.SetCellValue(summarySheet, "A1", "Outcome")
	f.SetCellValue(summarySheet, "B1", "Count")
	for i, outcome := range order {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+2), outcome)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+2), outcomes[outcome])
	}
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", len(order)+2), "Total")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", len(order)+2), len(entries))

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(entries), nil
}

func citationSummary(refs []models.SourceRef) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, strings.TrimPrefix(CitationLine(r), "- "))
	}
	return strings.Join(parts, "; ")
}
