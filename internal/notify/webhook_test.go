package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/domain"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
)

func record() *domain.GameRecord {
	return &domain.GameRecord{
		ID:       "g1",
		RoomID:   "r1",
		White:    domain.PlayerInfo{Name: "alice"},
		Black:    domain.PlayerInfo{Name: "bob"},
		Outcome:  "black-win",
		Reason:   "checkmate",
		Winner:   "b",
		MovesSAN: []string{"f3", "e5", "g4", "Qh4#"},
	}
}

func TestWebhookPostsPayload(t *testing.T) {
	var got GameFinishedPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL,
		WithCatalog(msgcat.MustDefault()),
		WithHeaderProvider(func() map[string]string { return map[string]string{"Authorization": "Bearer t"} }),
	)
	if err := wh.GameFinished(context.Background(), record()); err != nil {
		t.Fatalf("GameFinished: %v", err)
	}
	if got.Event != "game_finished" || got.Moves != "f3 e5 g4 Qh4#" || got.Winner != "b" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Summary != "alice vs bob: black-win by checkmate in room r1" {
		t.Fatalf("summary = %q", got.Summary)
	}
	if auth != "Bearer t" {
		t.Fatalf("header provider not applied: %q", auth)
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithRetry(3), WithBackoff(time.Millisecond))
	if err := wh.GameFinished(context.Background(), record()); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithRetry(5), WithBackoff(time.Millisecond))
	if err := wh.GameFinished(context.Background(), record()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, calls = %d", calls.Load())
	}
}

func TestWebhookEmptyURL(t *testing.T) {
	if err := NewWebhook("  ").GameFinished(context.Background(), record()); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestWebhookReportsBrokenSummaryTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "webhook.yaml"), []byte("webhook:\n  finished: \"{{.Nope}} won\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog, err := msgcat.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got GameFinishedPayload
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err = NewWebhook(srv.URL, WithCatalog(catalog)).GameFinished(context.Background(), record())
	if err == nil || !strings.Contains(err.Error(), "render webhook summary") {
		t.Fatalf("expected render error, got %v", err)
	}
	if calls.Load() != 1 || got.Event != "game_finished" || got.Summary != "" {
		t.Fatalf("event should still be delivered without summary: calls=%d payload=%+v", calls.Load(), got)
	}
}
