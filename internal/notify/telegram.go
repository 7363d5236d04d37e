// Package notify delivers best-effort human-readable event messages.
// Delivery failures never affect trading logic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxAttempts = 3
	baseBackoff = time.Second
	maxBackoff  = 10 * time.Second
	sendTimeout = 5 * time.Second
	defaultAPI  = "https://api.telegram.org"
)

// Telegram posts messages to a chat via the bot API. A disabled or
// unconfigured notifier silently drops everything.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	hc      *http.Client
	log     zerolog.Logger
}

// NewTelegram builds a notifier; empty token or chat id disables it.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		baseURL: defaultAPI,
		token:   token,
		chatID:  chatID,
		hc:      &http.Client{Timeout: sendTimeout},
		log:     log,
	}
}

// WithBaseURL overrides the API host, used by tests.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	t.baseURL = u
	return t
}

// Enabled reports whether the notifier has credentials to deliver.
func (t *Telegram) Enabled() bool { return t.token != "" && t.chatID != "" }

// Notify dispatches the message in the background so the engine loop is
// never blocked on notification I/O.
func (t *Telegram) Notify(ctx context.Context, text string) {
	if !t.Enabled() {
		return
	}
	go t.send(ctx, text)
}

// send retries with exponential backoff and swallows terminal failures.
func (t *Telegram) send(ctx context.Context, text string) {
	backoff := baseBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := t.post(ctx, text)
		if err == nil {
			return
		}
		t.log.Warn().Err(err).Int("attempt", attempt).Msg("telegram delivery failed")
		if attempt == maxAttempts {
			return
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (t *Telegram) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"chat_id": t.chatID, "text": text})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}
