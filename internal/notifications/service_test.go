package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookforge/internal/config"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newTestService(t *testing.T) (*ntfyService, *captured) {
	t.Helper()

	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return &ntfyService{
		endpoint: server.URL,
		client:   server.Client(),
	}, got
}

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""

	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyBatchStarted(context.Background(), 3); err != nil {
		t.Fatalf("noop notify failed: %v", err)
	}
}

func TestNotifyBatchStarted(t *testing.T) {
	svc, got := newTestService(t)

	if err := svc.NotifyBatchStarted(context.Background(), 3); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.title != "Bookforge - Batch Started" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.tags != "bookforge,batch,started" {
		t.Errorf("unexpected tags %q", got.tags)
	}
	if got.priority != "" {
		t.Errorf("expected default priority, got %q", got.priority)
	}
	if got.body != "Started publishing batch of 3 book(s)" {
		t.Errorf("unexpected body %q", got.body)
	}
}

func TestNotifyBookPublished(t *testing.T) {
	svc, got := newTestService(t)

	if err := svc.NotifyBookPublished(context.Background(), "The Silent Garden", true); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.body != "Published: The Silent Garden" {
		t.Errorf("unexpected body %q", got.body)
	}

	if err := svc.NotifyBookPublished(context.Background(), "The Silent Garden", false); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(got.body, "Submitted without confirmation: The Silent Garden") {
		t.Errorf("unexpected body %q", got.body)
	}
	if !strings.Contains(got.body, "Verify on the bookshelf") {
		t.Errorf("expected verification hint in body %q", got.body)
	}
}

func TestNotifyBatchCompleted(t *testing.T) {
	svc, got := newTestService(t)

	if err := svc.NotifyBatchCompleted(context.Background(), 3, 0, 95*time.Second); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.title != "Bookforge - Batch Complete" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.body != "Batch complete: 3 book(s) published in 1m35s" {
		t.Errorf("unexpected body %q", got.body)
	}
	if got.priority != "high" {
		t.Errorf("unexpected priority %q", got.priority)
	}

	if err := svc.NotifyBatchCompleted(context.Background(), 2, 1, 10*time.Second); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.title != "Bookforge - Batch Complete (with errors)" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.body != "Batch complete: 2 published, 1 failed in 10s" {
		t.Errorf("unexpected body %q", got.body)
	}
}

func TestNotifyBatchAborted(t *testing.T) {
	svc, got := newTestService(t)

	if err := svc.NotifyBatchAborted(context.Background(), errors.New("sign-in rejected")); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if got.title != "Bookforge - Batch Aborted" {
		t.Errorf("unexpected title %q", got.title)
	}
	if got.body != "Batch aborted: sign-in rejected" {
		t.Errorf("unexpected body %q", got.body)
	}
	if got.priority != "high" {
		t.Errorf("unexpected priority %q", got.priority)
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	svc := &ntfyService{endpoint: server.URL, client: server.Client()}
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status code in error, got %v", err)
	}
}
