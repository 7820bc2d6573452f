package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name:   "default config",
			config: nil,
		},
		{
			name: "json format",
			config: &Config{
				Level:  LevelInfo,
				Format: "json",
				Output: &bytes.Buffer{},
			},
		},
		{
			name: "text format",
			config: &Config{
				Level:  LevelDebug,
				Format: "text",
				Output: &bytes.Buffer{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		NoColor: true,
	}

	logger := NewLogger(config)

	deviceLogger := logger.WithDevice("/dev/sdb")
	deviceLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "device=/dev/sdb") {
		t.Errorf("Expected device=/dev/sdb in output, got: %s", output)
	}

	// Phase context stacks on top of the device context.
	buf.Reset()
	phaseLogger := deviceLogger.WithPhase("write-random")
	phaseLogger.Info("phase message")

	output = buf.String()
	if !strings.Contains(output, "device=/dev/sdb") {
		t.Errorf("Expected device=/dev/sdb in phase logger output, got: %s", output)
	}
	if !strings.Contains(output, "phase=write-random") {
		t.Errorf("Expected phase=write-random in output, got: %s", output)
	}
}

func TestLoggerWithBlock(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		NoColor: true,
	}

	logger := NewLogger(config)
	blockLogger := logger.WithBlock(3, 1441)
	blockLogger.Debug("checking block")

	output := buf.String()
	if !strings.Contains(output, "slot=3") {
		t.Errorf("Expected slot=3 in output, got: %s", output)
	}
	if !strings.Contains(output, "block=1441") {
		t.Errorf("Expected block=1441 in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:   LevelDebug,
		Format:  "text",
		Output:  &buf,
		NoColor: true,
	}

	logger := NewLogger(config)
	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("Expected 'test error' in output, got: %s", output)
	}
}

func TestLoggerKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "json",
		Output: &buf,
	}

	logger := NewLogger(config)
	logger.Info("device opened", "size", 1000000, "alignment", 4096)

	output := buf.String()
	if !strings.Contains(output, `"size":1000000`) {
		t.Errorf("Expected size field in output, got: %s", output)
	}
	if !strings.Contains(output, `"alignment":4096`) {
		t.Errorf("Expected alignment field in output, got: %s", output)
	}
	if !strings.Contains(output, `"message":"device opened"`) {
		t.Errorf("Expected message in output, got: %s", output)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelWarn,
		Format: "json",
		Output: &buf,
	}

	logger := NewLogger(config)
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("Levels below warn should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Errorf("Expected warn message in output, got: %s", output)
	}
}

func TestLoggerPrintf(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{
		Level:  LevelDebug,
		Format: "json",
		Output: &buf,
	}

	logger := NewLogger(config)
	logger.Infof("validated %d of %d blocks", 572, 576)

	output := buf.String()
	if !strings.Contains(output, "validated 572 of 576 blocks") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{
		Level:  LevelDebug,
		Format: "json",
		Output: &buf,
	}))

	Info("global message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "global message") {
		t.Errorf("Expected global message in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("Expected key field in output, got: %s", output)
	}
}
