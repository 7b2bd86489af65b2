package queue

import (
	"strings"
	"testing"
)

func TestNewMessageStampsVersion(t *testing.T) {
	msg := NewMessage("doc-1", "guest:abc", "req-1")
	if msg.Version != MessageVersion {
		t.Fatalf("expected version %d, got %d", MessageVersion, msg.Version)
	}
	if msg.EnqueuedAt == "" {
		t.Fatalf("expected enqueuedAt to be set")
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if !strings.Contains(string(payload), `"documentId":"doc-1"`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
