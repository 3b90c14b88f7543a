package common

import (
	"strings"
	"testing"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "Rp 0"},
		{"950", "Rp 950"},
		{"1000", "Rp 1.000"},
		{"1250000.5", "Rp 1.250.000,50"},
		{"123456789.05", "Rp 123.456.789,05"},
		{"-45000", "-Rp 45.000"},
		{"999.999", "Rp 1.000"},
	}
	for _, tt := range tests {
		if got := FormatRupiah(decimal.RequireFromString(tt.amount)); got != tt.want {
			t.Errorf("FormatRupiah(%s) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatJobSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := FormatJobSummary(models.JobSummary{
		Job: "auto-approve-returns", CompletedCount: 3, SkippedCount: 1, ErrorCount: 1,
		StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	})

	for _, want := range []string{"auto-approve-returns", "completed=" + ColorRed + "3", "skipped=1", "errors=1", "1.5s"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
}
