package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"roofmon/internal/config"
	"roofmon/internal/types"
)

// telegramSender is the slice of tgbotapi.BotAPI the sink uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink messages a chat on every roof transition.
type TelegramSink struct {
	bot    telegramSender
	chatID int64
}

func NewTelegramSink(cfg config.TelegramConfig, log *zap.Logger) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram sink authorized", zap.String("username", bot.Self.UserName))
	return &TelegramSink{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Publish(_ context.Context, rec types.StatusRecord) error {
	msg := tgbotapi.NewMessage(t.chatID, formatTransition(rec))
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatTransition(rec types.StatusRecord) string {
	icon := "🔭"
	if rec.Label == types.Closed {
		icon = "🏠"
	}
	return fmt.Sprintf("%s <b>Roof %s</b>\nConfidence: %.0f%%\nTime: %s",
		icon, rec.Label, rec.Confidence*100,
		rec.UpdatedAt.Format("2006-01-02 15:04:05"))
}
