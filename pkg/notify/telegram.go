package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/metrics"
)

const telegramMessageLimit = 4096

// TelegramNotifier sends alerts to a single chat through the Bot API.
type TelegramNotifier struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewTelegramNotifier returns nil, nil when the bot is not configured.
// apiURL may be empty to use the public Bot API endpoint.
func NewTelegramNotifier(token string, chatID int64, apiURL string) (Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true, // no getMe round trip, the bot only sends
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:  bot,
		chat: &tele.Chat{ID: chatID},
		// the Bot API allows about one message per second in a chat
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:  logger.New("telegram-notifier"),
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, message string) {
	if err := t.limiter.Wait(ctx); err != nil {
		metrics.Notifications.WithLabelValues("telegram", "failed").Inc()
		t.logger.Warn().
			Err(err).
			Str("action", "notification_dropped").
			Str("channel", "telegram").
			Msg("Notification not sent")
		return
	}

	// sent as plain text, the alert body is Discord markdown
	_, err := t.bot.Send(t.chat, truncate(message, telegramMessageLimit), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		metrics.Notifications.WithLabelValues("telegram", "failed").Inc()
		t.logger.Warn().
			Err(err).
			Str("action", "notification_failed").
			Str("channel", "telegram").
			Int64("chat_id", t.chat.ID).
			Msg("Notification send failed")
		return
	}
	metrics.Notifications.WithLabelValues("telegram", "sent").Inc()
}
