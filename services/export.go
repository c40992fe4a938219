package services

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"study-assistant/internal/logger"
	"study-assistant/models"
)

const (
	summarySheetName = "Summary"
	chunksSheetName  = "Chunks"
	stepsSheetName   = "Steps"
)

// ExportDocumentXLSX renders one analysis record as a workbook with Summary,
// Chunks and Steps sheets.
func ExportDocumentXLSX(record *models.DocumentAnalysisResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	// NewFile starts with Sheet1; rename it instead of leaving an empty sheet behind.
	if err := f.SetSheetName("Sheet1", summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	summaryData := [][]interface{}{
		{"Document ID", record.DocumentID},
		{"File Name", record.FileName},
		{"MIME Type", record.MimeType},
		{"Created At", record.CreatedAt.Format("2006-01-02 15:04:05")},
		{"File Size", record.FileSize},
		{"Total Tokens", record.TotalTokens},
		{"Chunk Count", record.ChunkCount},
		{"Vector Count", record.EmbeddingsSummary.VectorCount},
		{"Dimensions", record.EmbeddingsSummary.Dimensions},
		{"Index Key", record.IndexInfo.IndexKey},
	}
	if record.NumPages != nil {
		summaryData = append(summaryData, []interface{}{"Pages", *record.NumPages})
	}
	if err := writeRows(f, summarySheetName, summaryData); err != nil {
		return nil, err
	}
	f.SetColWidth(summarySheetName, "A", "A", 18)
	f.SetColWidth(summarySheetName, "B", "B", 48)

	if _, err := f.NewSheet(chunksSheetName); err != nil {
		return nil, fmt.Errorf("failed to create chunks sheet: %w", err)
	}
	chunkRows := [][]interface{}{{"ID", "Start Token", "End Token", "Token Count", "Text"}}
	for _, c := range record.Chunks {
		chunkRows = append(chunkRows, []interface{}{c.ID, c.StartToken, c.EndToken, c.TokenCount, c.Text})
	}
	if err := writeRows(f, chunksSheetName, chunkRows); err != nil {
		return nil, err
	}
	f.SetColWidth(chunksSheetName, "A", "D", 12)
	f.SetColWidth(chunksSheetName, "E", "E", 100)

	if _, err := f.NewSheet(stepsSheetName); err != nil {
		return nil, fmt.Errorf("failed to create steps sheet: %w", err)
	}
	stepRows := [][]interface{}{{"ID", "Label", "Status", "Duration (ms)", "Meta"}}
	for _, s := range record.Steps {
		var duration interface{}
		if s.DurationMs != nil {
			duration = *s.DurationMs
		}
		stepRows = append(stepRows, []interface{}{string(s.ID), s.Label, string(s.Status), duration, formatMeta(s.Meta)})
	}
	if err := writeRows(f, stepsSheetName, stepRows); err != nil {
		return nil, err
	}
	f.SetColWidth(stepsSheetName, "A", "D", 15)
	f.SetColWidth(stepsSheetName, "E", "E", 60)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// formatMeta renders meta as "key=value" pairs in key order.
func formatMeta(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s=%v", k, meta[k])
	}
	return buf.String()
}
