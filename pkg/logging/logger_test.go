package logging

import (
	"context"
	"testing"
	"time"

	"swapdesk/pkg/telemetry"
)

func TestZapLogger_OTelBridge(t *testing.T) {
	tel, err := telemetry.Setup("test-logger")
	if err != nil {
		t.Fatalf("OTel setup failed: %v", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := NewZapLogger("DEBUG")
	if err != nil {
		t.Fatalf("Zap logger creation failed: %v", err)
	}

	logger.Info("Test OTel bridging", "key", "value")

	// Wait a bit for OTel batching (if any)
	time.Sleep(500 * time.Millisecond)

	logger.Debug("Debug message", "status", "testing")

	_ = logger.Sync() // stdout sync may fail in some envs, ignore
}

func TestZapLogger_InvalidLevel(t *testing.T) {
	if _, err := NewZapLogger("NOISY"); err == nil {
		t.Error("expected error for invalid level")
	}
}
