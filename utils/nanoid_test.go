package utils

import (
	"strings"
	"testing"
)

func TestTraceID(t *testing.T) {
	id := TraceID()
	if len(id) != traceLength {
		t.Fatalf("expected length %d, got %d", traceLength, len(id))
	}
	for _, r := range id {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("unexpected rune %q in %q", r, id)
		}
	}
	if TraceID() == id {
		t.Errorf("expected distinct ids")
	}
}
