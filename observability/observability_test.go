package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Info("ignored", String("k", "v"))
	if _, ok := l.With(Int("n", 1)).(NopLogger); !ok {
		t.Fatalf("nop logger should stay nop")
	}
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("OrNop(nil) should return NopLogger")
	}
}

func TestCharmLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewCharmLogger(Options{Level: "debug", Format: "json", Output: &buf})
	l.With(String(KeyDocument, "a.pdf")).Debug("page redacted", Int(KeyPage, 2), Error("err", errors.New("boom")))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "page redacted" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
	if entry[KeyDocument] != "a.pdf" {
		t.Fatalf("missing inherited field: %v", entry)
	}
	if entry[KeyPage] != float64(2) {
		t.Fatalf("unexpected page field: %v", entry[KeyPage])
	}
}

func TestCharmLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewCharmLogger(Options{Level: "warn", Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed: %q", out)
	}
}
