package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func logLine(t *testing.T, path string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))

	if buf.Len() == 0 {
		return nil
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not JSON: %v", err)
	}
	return line
}

func TestLoggerRecordsDelivery(t *testing.T) {
	line := logLine(t, "/callback", http.StatusOK)
	if line["level"] != "info" {
		t.Fatalf("expected info level, got %v", line["level"])
	}
	if line["method"] != "POST" || line["path"] != "/callback" || line["status"] != float64(200) {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestLoggerWarnsOnRejection(t *testing.T) {
	line := logLine(t, "/callback", http.StatusBadRequest)
	if line["level"] != "warn" {
		t.Fatalf("rejections should log at warn, got %v", line["level"])
	}
}

func TestLoggerDemotesScrapes(t *testing.T) {
	line := logLine(t, "/metrics", http.StatusOK)
	if line["level"] != "debug" {
		t.Fatalf("scrapes should log at debug, got %v", line["level"])
	}
}
