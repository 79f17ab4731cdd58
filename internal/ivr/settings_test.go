package ivr

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSource_FetchAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{
			"greetingText": "Hi there.",
			"invalidOptionMessage": "Bad option.",
			"replayMessage": "Say again.",
			"menuOptions": [
				{"keyPress": "1", "optionText": "Press 1.", "intentType": "basketball_rental", "orderIndex": 1, "isActive": true}
			]
		}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL, discardLogger())

	first := src.Settings(context.Background())
	if first.GreetingText != "Hi there." {
		t.Errorf("GreetingText = %q", first.GreetingText)
	}

	// Second read within TTL must be served from cache.
	src.Settings(context.Background())
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}

	src.Invalidate()
	src.Settings(context.Background())
	if got := calls.Load(); got != 2 {
		t.Errorf("fetch count after invalidate = %d, want 2", got)
	}
}

func TestSource_FallbackToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewSource(srv.URL, discardLogger())
	settings := src.Settings(context.Background())
	if settings.GreetingText != DefaultSettings().GreetingText {
		t.Errorf("expected default settings, got %q", settings.GreetingText)
	}
	if len(settings.MenuOptions) != 3 {
		t.Errorf("default menu has %d options", len(settings.MenuOptions))
	}
}

func TestSource_StaleCacheOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{
			"greetingText": "From dashboard.",
			"menuOptions": [{"keyPress": "1", "optionText": "Press 1.", "orderIndex": 1, "isActive": true}]
		}`))
	}))
	defer srv.Close()

	src := NewSource(srv.URL, discardLogger(), WithCacheTTL(10*time.Millisecond))

	if got := src.Settings(context.Background()).GreetingText; got != "From dashboard." {
		t.Fatalf("first fetch = %q", got)
	}

	fail.Store(true)
	time.Sleep(20 * time.Millisecond) // let the cache entry expire

	// Fetch now fails; the stale copy beats the built-in defaults.
	if got := src.Settings(context.Background()).GreetingText; got != "From dashboard." {
		t.Errorf("stale fallback = %q, want last good settings", got)
	}
}

func TestSource_EmptyURLUsesDefaults(t *testing.T) {
	src := NewSource("", discardLogger())
	settings := src.Settings(context.Background())
	if settings.GreetingText != DefaultSettings().GreetingText {
		t.Errorf("expected defaults for empty URL")
	}
}
