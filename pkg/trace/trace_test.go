package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}

func TestFromHeader(t *testing.T) {
	if got := FromHeader("req-1"); got != "req-1" {
		t.Errorf("expected header value to be kept, got %q", got)
	}
	generated := FromHeader("")
	if len(generated) != 32 {
		t.Errorf("expected 32 hex chars, got %q", generated)
	}
}
