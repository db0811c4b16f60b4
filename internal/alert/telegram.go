package alert

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"cronwatch/internal/config"
)

// TelegramSink posts alerts to a Telegram chat. The bot runs without a
// poller: it only ever sends.
type TelegramSink struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramSink(cfg config.TelegramConfig) (*TelegramSink, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: false,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSink{bot: b, chatID: cfg.ChatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	chat := &tele.Chat{ID: s.chatID}
	text := subject + "\n\n" + body
	_, err := s.bot.Send(chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
