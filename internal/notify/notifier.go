// Package notify delivers recorder notifications over webhooks and email.
// All delivery is best-effort: failures are logged and never reach the
// capture loop.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencapture/soundtrap/internal/recording"
)

// Config holds all notification channel settings.
type Config struct {
	WebhookURL string      `json:"webhook_url"`
	Email      GraphConfig `json:"email"`
}

// Notifier fans notifications out to the configured channels.
type Notifier struct {
	webhookURL string
	station    string
	email      *GraphClient
}

// New creates a Notifier. An unconfigured channel is simply skipped; a
// misconfigured email channel is reported once at startup.
func New(cfg *Config, stationName string) *Notifier {
	n := &Notifier{webhookURL: cfg.WebhookURL, station: stationName}

	if cfg.Email.IsConfigured() {
		client, err := NewGraphClient(&cfg.Email)
		if err != nil {
			slog.Warn("email notifications disabled", "error", err)
		} else {
			n.email = client
		}
	}
	return n
}

// RecordingCompleted announces a finalized recording to the webhook.
func (n *Notifier) RecordingCompleted(m *recording.Metadata) {
	go n.deliverWebhook(&WebhookPayload{
		Event:         "recording_completed",
		Basename:      m.Basename,
		LengthSeconds: m.Length,
		Threshold:     m.Threshold,
		Timestamp:     timestampUTC(),
	})
}

// StorageError reports a storage failure to the webhook and, if configured,
// by email. Storage failures on an unattended device need a human.
func (n *Notifier) StorageError(operation string, err error) {
	go func() {
		n.deliverWebhook(&WebhookPayload{
			Event:     "storage_error",
			Message:   fmt.Sprintf("%s: %v", operation, err),
			Timestamp: timestampUTC(),
		})

		if n.email != nil {
			ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
			defer cancel()
			subject := fmt.Sprintf("[%s] recording storage error", n.station)
			body := fmt.Sprintf("Storage failure during %s:\n\n%v\n\nAt: %s\n", operation, err, timestampUTC())
			if mailErr := n.email.SendMail(ctx, subject, body); mailErr != nil {
				slog.Warn("storage error email failed", "error", mailErr)
			}
		}
	}()
}

// CalibrationCompleted announces a successful calibration to the webhook.
// Delivery is synchronous; the calibration mode exits right after.
func (n *Notifier) CalibrationCompleted(threshold float64) {
	n.deliverWebhook(&WebhookPayload{
		Event:     "calibration_completed",
		Threshold: threshold,
		Timestamp: timestampUTC(),
	})
}

func (n *Notifier) deliverWebhook(payload *WebhookPayload) {
	start := time.Now()
	if err := sendWebhook(n.webhookURL, payload); err != nil {
		slog.Warn("webhook delivery failed", "event", payload.Event, "error", err)
		return
	}
	if n.webhookURL != "" {
		slog.Debug("webhook delivered", "event", payload.Event, "took", time.Since(start))
	}
}
