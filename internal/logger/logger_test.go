package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info().Str("key", "value").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["key"] != "value" {
		t.Errorf("expected key=value, got %v", entry["key"])
	}
	if entry["message"] != "hello" {
		t.Errorf("expected message=hello, got %v", entry["message"])
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)

	got.Info().Msg("from context")
	if buf.Len() == 0 {
		t.Error("logger from context did not write to the original writer")
	}
}

func TestFromContextMissing(t *testing.T) {
	// Must not panic, must return a usable logger.
	log := FromContext(context.Background())
	log.Debug().Msg("default logger")
}

func TestWithDocument(t *testing.T) {
	var buf bytes.Buffer
	log := WithDocument(NewWithWriter(&buf), "doc-123")

	log.Info().Msg("tagged")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["document_id"] != "doc-123" {
		t.Errorf("expected document_id=doc-123, got %v", entry["document_id"])
	}
}
