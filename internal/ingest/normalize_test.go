package ingest

import (
	"testing"

	"github.com/feedtriage/triage/internal/model"
)

func TestNormalizeLineParsesJSONFields(t *testing.T) {
	e := normalizeLine(`{"message":"db connection failed","level":"error","request_id":"r1"}`)
	if e.Message != "db connection failed" {
		t.Fatalf("Message = %q", e.Message)
	}
	if e.Level != model.LevelError {
		t.Fatalf("Level = %v, want Error", e.Level)
	}
	if v, ok := e.Fields.Get("request_id"); !ok || v != "r1" {
		t.Fatalf("Fields[request_id] = %q,%v", v, ok)
	}
}

func TestNormalizeLineParsesPinoNumericLevel(t *testing.T) {
	e := normalizeLine(`{"msg":"starting up","level":30}`)
	if e.Level != model.LevelInfo {
		t.Fatalf("Level = %v, want Info (pino 30)", e.Level)
	}
}

func TestNormalizeLineFallsBackToLogfmt(t *testing.T) {
	e := normalizeLine(`level=warn msg="disk usage high" host=db1`)
	if e.Level != model.LevelWarn {
		t.Fatalf("Level = %v, want Warn", e.Level)
	}
	if e.Message != "disk usage high" {
		t.Fatalf("Message = %q", e.Message)
	}
	if v, ok := e.Fields.Get("host"); !ok || v != "db1" {
		t.Fatalf("Fields[host] = %q,%v", v, ok)
	}
}

func TestNormalizeLineFallsBackToPlainText(t *testing.T) {
	e := normalizeLine("2024-01-15T10:30:45Z ERROR: connection refused")
	if e.Level != model.LevelError {
		t.Fatalf("Level = %v, want Error", e.Level)
	}
	if e.Timestamp.IsZero() {
		t.Fatal("expected a parsed timestamp")
	}
	if e.Message == "" {
		t.Fatal("expected a non-empty message")
	}
}

func TestNormalizeLinePlainTextWithoutSeverityDefaultsUnset(t *testing.T) {
	e := normalizeLine("just a regular line")
	if e.Level != model.LevelUnset {
		t.Fatalf("Level = %v, want Unset", e.Level)
	}
}
