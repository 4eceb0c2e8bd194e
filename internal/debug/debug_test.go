// internal/debug/debug_test.go
package debug

import (
	"context"
	"log/slog"
	"testing"
)

func TestWithDebug(t *testing.T) {
	ctx := WithDebug(context.Background(), true)
	if !IsEnabled(ctx) {
		t.Error("IsEnabled should return true when debug is enabled")
	}
}

func TestIsEnabled_DefaultFalse(t *testing.T) {
	ctx := context.Background()
	if IsEnabled(ctx) {
		t.Error("IsEnabled should return false by default")
	}
}

func TestWithDebug_Disabled(t *testing.T) {
	ctx := WithDebug(context.Background(), false)
	if IsEnabled(ctx) {
		t.Error("IsEnabled should return false when debug is disabled")
	}
}

func TestSetupLogger_DebugEnabled(t *testing.T) {
	SetupLogger(true, false)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetupLogger(true, false) should enable debug level logging")
	}
}

func TestSetupLogger_Default(t *testing.T) {
	SetupLogger(false, false)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should not log at debug level")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should log at info level")
	}
}

func TestSetupLogger_Quiet(t *testing.T) {
	SetupLogger(false, true)

	if slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("quiet logger should not log at info level")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("quiet logger should log at warn level")
	}
}

func TestSetupLogger_DebugBeatsQuiet(t *testing.T) {
	SetupLogger(true, true)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should win over quiet")
	}
}
