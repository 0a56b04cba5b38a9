package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/notify"
)

// webhookForwarder delivers results by POSTing them to the front
// end's delivery webhook. The front end resolves the chat ID to an
// actual conversation and formats the message itself.
type webhookForwarder struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// deliveryPayload is the webhook request body.
type deliveryPayload struct {
	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

func newWebhookForwarder(url string, log *slog.Logger) *webhookForwarder {
	return &webhookForwarder{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.With(slog.String("component", "webhook_forwarder")),
	}
}

// Ensure webhookForwarder implements notify.Forwarder.
var _ notify.Forwarder = (*webhookForwarder)(nil)

// Forward implements notify.Forwarder.Forward.
func (f *webhookForwarder) Forward(ctx context.Context, notification *domain.Notification) error {
	payload, err := json.Marshal(deliveryPayload{
		ChatID: notification.ChatID,
		UserID: notification.UserID,
		Text:   notification.Result,
	})
	if err != nil {
		return fmt.Errorf("failed to encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("delivery webhook returned status %d", resp.StatusCode)
	}

	return nil
}
