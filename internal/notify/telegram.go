package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/errors"
)

// Telegram is the fallback channel for households without SMS credit. It
// maps recipient phone numbers to pre-registered chat IDs; numbers without
// a mapping cannot be reached on this channel.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chats  map[string]int64
	logger *zap.Logger
}

// NewTelegram connects the bot and builds the transport. Returns an error
// when the token is rejected.
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}

	logger.Info("telegram transport ready", zap.String("bot", bot.Self.UserName))

	chats := make(map[string]int64, len(cfg.Chats))
	for phone, chatID := range cfg.Chats {
		chats[NormalizePhone(phone)] = chatID
	}

	return &Telegram{bot: bot, chats: chats, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send delivers the message to the chat registered for the phone number.
func (t *Telegram) Send(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, ok := t.chats[NormalizePhone(phone)]
	if !ok {
		return errors.Wrap(nil, errors.ErrNoRecipient.Code, "no telegram chat registered for number")
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, message)); err != nil {
		return errors.Wrap(err, errors.ErrSendFailed.Code, "telegram send failed")
	}
	return nil
}
