package common

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitializeLogger_InstallsGlobal(t *testing.T) {
	previous := zap.L()
	defer zap.ReplaceGlobals(previous)

	logger, cleanup := InitializeLogger()
	defer cleanup()

	if zap.L() != logger {
		t.Error("Expected zap.L() to return the production logger")
	}
	if zap.L().Core().Enabled(zap.DebugLevel) {
		t.Error("Expected production logger to drop debug entries")
	}
}
