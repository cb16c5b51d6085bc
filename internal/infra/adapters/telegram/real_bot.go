package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"restaurant-storefront/internal/config"
	"restaurant-storefront/internal/domain/ports/adapter"
)

var _ adapter.StaffMessenger = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter sends staff notifications through the Bot API. It never polls updates.
type RealTelegramBotAdapter struct {
	bot *tgbotapi.BotAPI
}

func NewRealTelegramBotAdapter(cfg *config.TelegramConfig) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("telegram config is nil")
	}
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &RealTelegramBotAdapter{bot: bot}, nil
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}
