// Package telegram answers reservoir queries over a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	updateTimeout = 60
	errorText     = "Something went wrong. Please try again later."
)

// Bot long-polls Telegram and answers commands with the Responder.
type Bot struct {
	api       *tgbotapi.BotAPI
	responder *Responder
	logger    *slog.Logger
}

// NewBot authorizes against the Bot API with token.
func NewBot(token string, responder *Responder, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{api: api, responder: responder, logger: logger}, nil
}

// Run handles updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot authorized", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	command := "help"
	if message.IsCommand() {
		command = message.Command()
	}
	b.logger.Debug("telegram message received", "chat_id", message.Chat.ID, "command", command)

	text, err := b.responder.Reply(ctx, command)
	if err != nil {
		b.logger.Error("telegram reply failed", "command", command, "error", err)
		if text == "" {
			text = errorText
		}
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("telegram send failed", "chat_id", message.Chat.ID, "error", err)
	}
}
