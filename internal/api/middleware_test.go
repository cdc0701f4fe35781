package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusWriterSupportsHijack(t *testing.T) {
	var w http.ResponseWriter = &statusWriter{ResponseWriter: httptest.NewRecorder()}

	// The websocket upgrade on /ws runs behind the logging middleware, so
	// the wrapper must expose the underlying connection controls.
	if _, ok := w.(http.Hijacker); !ok {
		t.Error("statusWriter does not implement http.Hijacker")
	}
	if _, ok := w.(http.Flusher); !ok {
		t.Error("statusWriter does not implement http.Flusher")
	}
}

func TestStatusWriterHijackWithoutSupport(t *testing.T) {
	// httptest.ResponseRecorder cannot hijack; the passthrough must surface
	// that as an error rather than panic.
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("Hijack() on a non-hijackable writer returned nil error")
	}
}
