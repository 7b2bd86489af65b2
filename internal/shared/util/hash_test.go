package util

import "testing"

func TestOwnerKey(t *testing.T) {
	id := "guest:12345"
	got := OwnerKey(id)
	if got != OwnerKey(id) {
		t.Fatalf("expected stable key, got %s", got)
	}
	if got == OwnerKey("guest:12346") {
		t.Fatalf("expected distinct keys for distinct owners")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSHA256Hex(t *testing.T) {
	const emptySum = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != emptySum {
		t.Fatalf("unexpected digest %s", got)
	}
}
