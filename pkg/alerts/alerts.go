// Package alerts delivers operator notifications (failed aggregation passes,
// stalled convoys) to chat sinks. Sink errors are logged and swallowed; an
// alert must never block or fail a monitoring pass.
package alerts

import (
	"context"
	"fmt"

	"github.com/townworks/towncrier/pkg/config"
	"github.com/townworks/towncrier/pkg/logger"
)

// Event is one notification.
type Event struct {
	Title string
	Body  string
}

func (e Event) text() string {
	if e.Body == "" {
		return e.Title
	}
	return fmt.Sprintf("%s\n%s", e.Title, e.Body)
}

// Sink delivers an Event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Notifier fans an event out to every configured sink.
type Notifier struct {
	sinks []Sink
}

// NewNotifier builds sinks from config. Unconfigured sinks are skipped;
// misconfigured ones are logged and skipped.
func NewNotifier(cfg config.AlertsConfig) *Notifier {
	n := &Notifier{}

	if cfg.SlackWebhookURL != "" {
		n.sinks = append(n.sinks, NewSlackSink(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookID != "" {
		sink, err := NewDiscordSink(cfg.DiscordWebhookID, cfg.DiscordToken)
		if err != nil {
			logger.WarnCF("alerts", "discord sink disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			n.sinks = append(n.sinks, sink)
		}
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		sink, err := NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.WarnCF("alerts", "telegram sink disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			n.sinks = append(n.sinks, sink)
		}
	}

	return n
}

// WithSinks creates a Notifier over explicit sinks.
func WithSinks(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Enabled reports whether any sink is configured.
func (n *Notifier) Enabled() bool { return len(n.sinks) > 0 }

// Notify sends the event to every sink, continuing past failures.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, ev); err != nil {
			logger.WarnCF("alerts", "sink delivery failed", map[string]interface{}{
				"sink":  sink.Name(),
				"error": err.Error(),
			})
		}
	}
}
