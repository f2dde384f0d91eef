package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"whaletracker/internal/papertrade"
)

type Telegram struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
	Logger *zap.Logger
}

// NewTelegram validates the token against the Bot API. endpoint may be empty
// for the public API.
func NewTelegram(token string, chatID int64, endpoint string, logger *zap.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("missing bot_token/chat_id")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	if logger != nil {
		logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	}
	return &Telegram{Bot: bot, ChatID: chatID, Logger: logger}, nil
}

func (t *Telegram) SendAlert(ctx context.Context, alert Alert) error {
	if err := t.send(ctx, FormatAlert(alert)); err != nil {
		return fmt.Errorf("telegram alert %s: %w", alert.MarketID, err)
	}
	if t.Logger != nil {
		t.Logger.Info("telegram alert sent", zap.String("market_id", alert.MarketID))
	}
	return nil
}

func (t *Telegram) SendDigest(ctx context.Context, stats papertrade.Stats) error {
	if err := t.send(ctx, FormatDigest(stats)); err != nil {
		return fmt.Errorf("telegram digest: %w", err)
	}
	return nil
}

// send posts an HTML message. The bot client has no context support, so
// cancellation is only checked up front.
func (t *Telegram) send(ctx context.Context, text string) error {
	if t == nil || t.Bot == nil {
		return fmt.Errorf("telegram bot not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.Bot.Send(msg)
	return err
}
