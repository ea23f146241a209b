package notification

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	bot     *bot.Bot
	chatID  string
	enabled bool
}

// NewTelegramNotifier creates a new Telegram notifier. A disabled or incomplete
// config yields a notifier that drops everything.
func NewTelegramNotifier(config TelegramConfig, opts ...bot.Option) (*TelegramNotifier, error) {
	t := &TelegramNotifier{
		chatID:  config.ChatID,
		enabled: config.Enabled && config.BotToken != "" && config.ChatID != "",
	}
	if !t.enabled {
		return t, nil
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t.bot = b
	return t, nil
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(ctx context.Context, n *Notification) error {
	if !t.enabled {
		return nil
	}

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      n.Message,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
