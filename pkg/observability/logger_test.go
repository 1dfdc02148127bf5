package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
)

// decodeEntry parses the single JSON line written by the slog handler
func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v (%s)", err, buf.String())
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeEntry(t, &buf)
		if entry["level"] != "INFO" {
			t.Errorf("Expected level INFO, got %v", entry["level"])
		}
		if entry["msg"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["msg"])
		}
	})

	t.Run("warn and error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if entry := decodeEntry(t, &buf); entry["level"] != "WARN" {
			t.Errorf("Expected level WARN, got %v", entry["level"])
		}

		buf.Reset()
		logger.Error("error message")
		if entry := decodeEntry(t, &buf); entry["level"] != "ERROR" {
			t.Errorf("Expected level ERROR, got %v", entry["level"])
		}
	})
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("organization_id", "org-1").
		WithFields(map[string]interface{}{"outcome": "invited", "count": 2}).
		Info("sso enrollment")

	entry := decodeEntry(t, &buf)
	if entry["organization_id"] != "org-1" {
		t.Errorf("organization_id = %v", entry["organization_id"])
	}
	if entry["outcome"] != "invited" {
		t.Errorf("outcome = %v", entry["outcome"])
	}
	if entry["count"] != float64(2) {
		t.Errorf("count = %v", entry["count"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("smtp timeout")).Error("failed to send invite")
	if entry := decodeEntry(t, &buf); entry["error"] != "smtp timeout" {
		t.Errorf("error = %v", entry["error"])
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	tests := []struct {
		name string
		log  func()
		want string
	}{
		{"Debugf", func() { logger.Debugf("test %s %d", "string", 42) }, "test string 42"},
		{"Infof", func() { logger.Infof("test %d", 123) }, "test 123"},
		{"Warnf", func() { logger.Warnf("warning %s", "test") }, "warning test"},
		{"Errorf", func() { logger.Errorf("error %v", "test") }, "error test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			if entry := decodeEntry(t, &buf); entry["msg"] != tt.want {
				t.Errorf("msg = %v, want %s", entry["msg"], tt.want)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	t.Run("RequestID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		if got := GetRequestID(ctx); got != "req-123" {
			t.Errorf("Expected request ID 'req-123', got %s", got)
		}
		if got := GetRequestID(context.Background()); got != "" {
			t.Errorf("Expected empty request ID, got %s", got)
		}
	})

	t.Run("UserID", func(t *testing.T) {
		ctx := WithUserID(context.Background(), "user-456")
		if got := GetUserID(ctx); got != "user-456" {
			t.Errorf("Expected user ID 'user-456', got %s", got)
		}
	})

	t.Run("FromContext", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
		ctx = WithRequestID(ctx, "req-123")
		ctx = WithUserID(ctx, "user-456")

		FromContext(ctx).Info("test message")

		entry := decodeEntry(t, &buf)
		if entry["request_id"] != "req-123" {
			t.Errorf("Expected request_id 'req-123', got %v", entry["request_id"])
		}
		if entry["user_id"] != "user-456" {
			t.Errorf("Expected user_id 'user-456', got %v", entry["user_id"])
		}
	})

	t.Run("FromContextOr prefers the context logger", func(t *testing.T) {
		var ctxBuf, fallbackBuf bytes.Buffer
		fallback := NewLogger(InfoLevel, &fallbackBuf)

		FromContextOr(context.Background(), fallback).Info("fallback")
		if fallbackBuf.Len() == 0 {
			t.Error("expected the fallback logger to be used")
		}

		ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &ctxBuf))
		fallbackBuf.Reset()
		FromContextOr(ctx, fallback).Info("context")
		if ctxBuf.Len() == 0 || fallbackBuf.Len() != 0 {
			t.Error("expected the context logger to be used")
		}
	})

	t.Run("GetLogger default", func(t *testing.T) {
		if GetLogger(context.Background()) == nil {
			t.Error("expected a default logger")
		}
		logger := NewLogger(InfoLevel, io.Discard)
		if GetLogger(WithLogger(context.Background(), logger)) != logger {
			t.Error("expected the stored logger")
		}
	})
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
