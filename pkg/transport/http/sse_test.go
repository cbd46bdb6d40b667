package http

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/agentbridge/pkg/api"
)

const testStreamID = "0b8e3f6a-4c1d-4f2e-9a7b-3c5d6e7f8091"

func TestBeginSetsSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	var registered string
	sw := newSSEStreamWriter(rec, func(id string) { registered = id })

	if err := sw.Begin(testStreamID); err != nil {
		t.Fatalf("Begin error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}
	if id := rec.Header().Get("X-Stream-ID"); id != testStreamID {
		t.Errorf("X-Stream-ID = %q, want %q", id, testStreamID)
	}
	if registered != testStreamID {
		t.Errorf("onBegin got %q, want %q", registered, testStreamID)
	}
	if !rec.Flushed {
		t.Error("headers should be flushed on Begin")
	}
	if !sw.hasStarted() {
		t.Error("hasStarted() = false after Begin")
	}

	if err := sw.Begin(testStreamID); err == nil {
		t.Error("second Begin should fail")
	}
}

func TestWriteLineWritesVerbatim(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEStreamWriter(rec, nil)
	sw.Begin(testStreamID)

	lines := []string{"data: {\"a\":1}\n\n", "data: {\"a\":2}\n\n"}
	for _, l := range lines {
		if err := sw.WriteLine(context.Background(), l); err != nil {
			t.Fatalf("WriteLine error: %v", err)
		}
	}

	if got, want := rec.Body.String(), lines[0]+lines[1]; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestWriteLineImpliesBegin(t *testing.T) {
	rec := httptest.NewRecorder()
	called := false
	sw := newSSEStreamWriter(rec, func(string) { called = true })

	if err := sw.WriteLine(context.Background(), "data: {}\n\n"); err != nil {
		t.Fatalf("WriteLine error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if called {
		t.Error("onBegin must not be called without a stream ID")
	}
}

func TestErrorLineIsFramedAndTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEStreamWriter(rec, nil)
	sw.Begin(testStreamID)

	if err := sw.WriteLine(context.Background(), "error: agent crashed"); err != nil {
		t.Fatalf("WriteLine error: %v", err)
	}
	if got := rec.Body.String(); got != "error: agent crashed\n\n" {
		t.Errorf("body = %q, want %q", got, "error: agent crashed\n\n")
	}

	if err := sw.WriteLine(context.Background(), "data: {}\n\n"); err == nil {
		t.Error("expected error writing after terminal line")
	}
}

func TestDoneLineIsTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEStreamWriter(rec, nil)

	if err := sw.WriteLine(context.Background(), api.DoneLine); err != nil {
		t.Fatalf("WriteLine error: %v", err)
	}
	if err := sw.WriteLine(context.Background(), api.DoneLine); err == nil {
		t.Error("expected error writing after [DONE]")
	}
}

func TestWriteLineCancelledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEStreamWriter(rec, nil)
	sw.Begin(testStreamID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sw.WriteLine(ctx, "data: {}\n\n"); err == nil {
		t.Error("expected error for cancelled context")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("nothing should be written, got %q", rec.Body.String())
	}
}
