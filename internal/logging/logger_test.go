package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func resetState() {
	mutex.Lock()
	defer mutex.Unlock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"lifecycle": "debug",
			"encoder":   "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"lifecycle", true, true, true},
		{"encoder", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("capture")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"capture": "debug"}})

	after := GetLogger("capture")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should pick up the module level after Initialize")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	if SetModuleLevel("streaming", "bogus") {
		t.Error("SetModuleLevel accepted an unknown level")
	}
	if !SetModuleLevel("streaming", "error") {
		t.Fatal("SetModuleLevel rejected a valid level")
	}
	if GetLogger("streaming").Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after raising level to error")
	}
}

func TestMultiHandlerWritesOncePerHandler(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")

	logger.Debug("debug only message")

	if count := strings.Count(buf.String(), "debug only message"); count != 1 {
		t.Errorf("expected 1 debug line, got %d: %s", count, buf.String())
	}
}

func TestBufferHandlerCapturesModuleAndAttrs(t *testing.T) {
	buffer := NewRingBuffer(4)
	logger := slog.New(NewBufferHandler(buffer, slog.LevelDebug)).With("module", "lifecycle")

	logger.WithGroup("session").Info("State changed", "to", "streaming", "error", errors.New("boom"))

	entries := buffer.Tail(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Module != "lifecycle" {
		t.Errorf("Module = %q, want lifecycle", entry.Module)
	}
	if entry.Level != "info" {
		t.Errorf("Level = %q, want info", entry.Level)
	}
	if entry.Attributes["session.to"] != "streaming" {
		t.Errorf("grouped attr missing: %v", entry.Attributes)
	}
	if entry.Attributes["session.error"] != "boom" {
		t.Errorf("error attr not flattened to string: %v", entry.Attributes)
	}
}
