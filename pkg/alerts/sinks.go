package alerts

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/slack-go/slack"
)

// SlackSink posts to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
}

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, ev Event) error {
	return slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{
		Text: ev.text(),
	})
}

// DiscordSink executes a Discord webhook. Webhook execution needs no bot
// identity, so the session stays unauthenticated unless a token is given.
type DiscordSink struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

func NewDiscordSink(webhookID, token string) (*DiscordSink, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	return &DiscordSink{session: session, webhookID: webhookID, token: token}, nil
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, ev Event) error {
	_, err := s.session.WebhookExecute(s.webhookID, s.token, false, &discordgo.WebhookParams{
		Content: ev.text(),
	}, discordgo.WithContext(ctx))
	return err
}

// TelegramSink sends to one Telegram chat via a bot.
type TelegramSink struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramSink(botToken string, chatID int64) (*TelegramSink, error) {
	bot, err := telego.NewBot(botToken, telego.WithDiscardLogger())
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, ev Event) error {
	_, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(s.chatID), ev.text()))
	return err
}
