package common

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const exportSummaryFile = "export-summary.json"

// TableExporter dumps one table as column-keyed records.
type TableExporter interface {
	ExportTable(ctx context.Context, table string) ([]map[string]any, error)
}

type TableExport struct {
	Table string `json:"table"`
	Count int    `json:"count"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

type ExportSummary struct {
	ExportDate        time.Time     `json:"exportDate"`
	TotalTables       int           `json:"totalTables"`
	SuccessfulExports int           `json:"successfulExports"`
	FailedExports     int           `json:"failedExports"`
	Details           []TableExport `json:"details"`
}

// ExportToDir writes each table to <dir>/<table>.json plus a summary file.
// A failing table is recorded in the summary and the rest still export.
func ExportToDir(ctx context.Context, exporter TableExporter, dir string, tables []string, now time.Time) (*ExportSummary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	summary := &ExportSummary{ExportDate: now.UTC(), TotalTables: len(tables)}
	for _, table := range tables {
		result := exportTable(ctx, exporter, dir, table)
		if result.Error != "" {
			summary.FailedExports++
			zap.L().Error("Failed to export table", zap.String("table", table), zap.String("error", result.Error))
		} else {
			summary.SuccessfulExports++
			zap.L().Info("Exported table",
				zap.String("table", table),
				zap.Int("rows", result.Count),
				zap.String("file", result.File))
		}
		summary.Details = append(summary.Details, result)
	}

	if err := writeJSONFile(filepath.Join(dir, exportSummaryFile), summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func exportTable(ctx context.Context, exporter TableExporter, dir, table string) TableExport {
	result := TableExport{Table: table}

	records, err := exporter.ExportTable(ctx, table)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	path := filepath.Join(dir, table+".json")
	if err := writeJSONFile(path, records); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Count = len(records)
	result.File = path
	return result
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
