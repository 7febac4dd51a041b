package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRespectsLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Writer: &buf, Format: "json"})

	logger.Info("hidden")
	logger.Warn("visible", "key", "value")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("info entry should be filtered at warn level")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["msg"] != "visible" || entry["key"] != "value" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Format: "text"})
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestContextCarriesIDs(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), " req-1 ")
	ctx = ContextWithVideoID(ctx, "video-1")

	if id, ok := RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("unexpected request id %q ok=%v", id, ok)
	}
	if id, ok := VideoIDFromContext(ctx); !ok || id != "video-1" {
		t.Fatalf("unexpected video id %q ok=%v", id, ok)
	}
	if _, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "  ")); ok {
		t.Fatal("blank request id should not be stored")
	}
}

func TestWithContextAnnotatesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf})
	ctx := ContextWithRequestID(context.Background(), "req-9")

	WithContext(ctx, logger).Info("annotated")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["request_id"] != "req-9" {
		t.Fatalf("expected request_id field, got %v", entry)
	}
}

func TestRequestLoggerEmitsEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf})
	middleware := RequestLogger(RequestLoggerConfig{Logger: logger, DisableRemoteAddr: true})

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/videos", nil))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["path"] != "/videos" || entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, present := entry["remote_addr"]; present {
		t.Fatal("remote_addr should be suppressed")
	}
}
