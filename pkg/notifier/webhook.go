package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbarrin/certflow/pkg/models"
)

const webhookTimeout = 10 * time.Second

// Webhook posts notification messages as JSON to the workflow's configured
// webhook URL.
type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(logger *slog.Logger) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger.With("module", "webhook_notifier"),
	}
}

type webhookPayload struct {
	Message      string `json:"message"`
	Email        string `json:"email,omitempty"`
	SlackChannel string `json:"slack_channel,omitempty"`
}

// Notify posts the message to the configured webhook. Email and Slack
// routing hints are forwarded in the payload for the receiving hook to act
// on.
func (n *Webhook) Notify(ctx context.Context, config *models.NotificationConfig, message string) error {
	if config == nil || config.WebhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(webhookPayload{
		Message:      message,
		Email:        config.Email,
		SlackChannel: config.SlackChannel,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}

	return nil
}
