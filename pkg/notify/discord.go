package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/metrics"
)

// discordMessageLimit is the maximum content length Discord accepts for a webhook message.
const discordMessageLimit = 2000

// DiscordNotifier posts messages to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewDiscordNotifier returns nil when webhookURL is empty so callers can pass the result to Combine.
func NewDiscordNotifier(webhookURL string, client *http.Client) Notifier {
	if webhookURL == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     client,
		// webhooks allow 5 requests per 2 seconds
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 5),
		logger:  logger.New("discord-notifier"),
	}
}

func (d *DiscordNotifier) Notify(ctx context.Context, message string) {
	if err := d.send(ctx, message); err != nil {
		metrics.Notifications.WithLabelValues("discord", "failed").Inc()
		d.logger.Warn().
			Err(err).
			Str("action", "notification_failed").
			Str("channel", "discord").
			Msg("Notification send failed")
		return
	}
	metrics.Notifications.WithLabelValues("discord", "sent").Inc()
	d.logger.Debug().
		Str("action", "notification_sent").
		Str("channel", "discord").
		Msg("Notification sent")
}

func (d *DiscordNotifier) send(ctx context.Context, message string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(map[string]string{"content": truncate(message, discordMessageLimit)})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.LogAPICall(http.MethodPost, "discord-webhook", 0, time.Since(start), err)
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	d.logger.LogAPICall(http.MethodPost, "discord-webhook", resp.StatusCode, time.Since(start), err)
	return err
}
