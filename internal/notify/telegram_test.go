package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNotifyDisabledWithoutCredentials(t *testing.T) {
	tg := NewTelegram("", "", zerolog.Nop())
	if tg.Enabled() {
		t.Fatalf("expected notifier disabled without credentials")
	}
	// Must be a no-op, not a panic or a hang.
	tg.Notify(context.Background(), "ignored")
}

func TestNotifyDelivers(t *testing.T) {
	received := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
	}))
	defer server.Close()

	tg := NewTelegram("token", "chat42", zerolog.Nop()).WithBaseURL(server.URL)
	tg.Notify(context.Background(), "position opened")

	select {
	case body := <-received:
		if body["chat_id"] != "chat42" || body["text"] != "position opened" {
			t.Fatalf("unexpected payload: %+v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSendGivesUpAfterBudget(t *testing.T) {
	var calls int
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == maxAttempts {
			close(done)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tg := NewTelegram("token", "chat", zerolog.Nop()).WithBaseURL(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	tg.send(ctx, "failing message")
	if calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls)
	}
	select {
	case <-done:
	default:
		t.Fatalf("expected all attempts to have completed")
	}
	if time.Since(start) < baseBackoff {
		t.Fatalf("expected backoff between attempts")
	}
}
