package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	records := []map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		record := map[string]any{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func TestNewWritesJSONWithRunID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(context.Background(), WithDir(dir), WithRunID("run-42"))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Logger.Info("complaint submitted", "complaint_id", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	name := filepath.Base(logger.Path())
	if !strings.HasPrefix(name, "dcms-") || !strings.HasSuffix(name, "-run-42.log") {
		t.Fatalf("log file name = %q", name)
	}
	if filepath.Dir(logger.Path()) != dir {
		t.Fatalf("log dir = %q, want %q", filepath.Dir(logger.Path()), dir)
	}

	records := readRecords(t, logger.Path())
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (debug init line filtered at info)", len(records))
	}
	if records[0]["run_id"] != "run-42" {
		t.Fatalf("run_id = %v", records[0]["run_id"])
	}
	if records[0]["msg"] != "complaint submitted" {
		t.Fatalf("msg = %v", records[0]["msg"])
	}
}

func TestWithLevelDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(context.Background(), WithDir(t.TempDir()), WithLevel("debug"))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Logger.Debug("dispatching command", "command", "track")
	_ = logger.Close()

	records := readRecords(t, logger.Path())
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
}

func TestWithSpanStampsTraceIDs(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	ctx, span := provider.Tracer("test").Start(context.Background(), "cmd.track")
	defer span.End()

	logger, err := New(context.Background(), WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.WithSpan(ctx).Logger.Info("listing")
	_ = logger.Close()

	records := readRecords(t, logger.Path())
	if records[0]["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("trace_id = %v", records[0]["trace_id"])
	}
	if records[0]["span_id"] != span.SpanContext().SpanID().String() {
		t.Fatalf("span_id = %v", records[0]["span_id"])
	}
}

func TestNilRuntimeLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var logger *RuntimeLogger
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	if logger.Path() != "" || logger.RunID() != "" {
		t.Fatal("nil logger should report empty values")
	}
	if logger.WithSpan(context.Background()) != nil {
		t.Fatal("WithSpan on nil should return nil")
	}
}
