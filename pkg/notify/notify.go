package notify

import (
	"context"
	"fmt"
	"time"
)

// Notifier forwards alert text to an operator channel.
// Implementations never return delivery errors to the caller; they log them instead.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Noop drops every message. Used when no channel is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) {}

// Multi fans a message out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) {
	for _, n := range m {
		n.Notify(ctx, message)
	}
}

// Combine returns Noop for no notifiers, the notifier itself for one, and Multi otherwise.
func Combine(notifiers ...Notifier) Notifier {
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	switch len(active) {
	case 0:
		return Noop{}
	case 1:
		return active[0]
	default:
		return Multi(active)
	}
}

const timeLayout = "2006-01-02 15:04:05"

// FormatJobFailure renders the alert sent when a job fails unexpectedly.
func FormatJobFailure(jobName string, err error, at time.Time) string {
	return fmt.Sprintf("**⚠️ Cronjob error**\n"+
		"**time:** `%s`\n"+
		"**Cronjob:** `%s`\n"+
		"**Error message:**\n"+
		"```\n%v\n```",
		at.Format(timeLayout), jobName, err)
}

// FormatModelWarning renders the alert sent when a single forecast model could not be fetched.
func FormatModelWarning(model string, err error, at time.Time) string {
	return fmt.Sprintf("**⚠️ Cronjob Warning**\n"+
		"**Time:** `%s`\n"+
		"**Unable to request data for model `%s`**\n"+
		"**Error message:**\n"+
		"```\n%v\n```",
		at.Format(timeLayout), model, err)
}

func truncate(message string, limit int) string {
	r := []rune(message)
	if len(r) <= limit {
		return message
	}
	return string(r[:limit-1]) + "…"
}
