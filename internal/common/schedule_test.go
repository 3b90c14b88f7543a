package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJobsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write jobs file: %v", err)
	}
	return path
}

func TestLoadJobSchedule(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - name: auto-complete-transactions
    interval: 5m
  - name: cleanup-expired-cart-items
    enabled: false
`)

	schedules, err := LoadJobSchedule(path)
	if err != nil {
		t.Fatalf("LoadJobSchedule failed: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("Expected 2 schedules, got %d", len(schedules))
	}

	settle := schedules["auto-complete-transactions"]
	if settle.Interval != 5*time.Minute || !settle.Enabled {
		t.Errorf("Unexpected settlement schedule %+v", settle)
	}
	cart := schedules["cleanup-expired-cart-items"]
	if cart.Interval != 0 || cart.Enabled {
		t.Errorf("Unexpected cart schedule %+v", cart)
	}
}

func TestLoadJobSchedule_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "jobs:\n  - interval: 1m\n"},
		{"bad interval", "jobs:\n  - name: a\n    interval: soon\n"},
		{"negative interval", "jobs:\n  - name: a\n    interval: -1m\n"},
		{"duplicate", "jobs:\n  - name: a\n  - name: a\n"},
		{"not yaml", "jobs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadJobSchedule(writeJobsFile(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := LoadJobSchedule(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
