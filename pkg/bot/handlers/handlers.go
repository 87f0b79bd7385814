// Package handlers wires Telegram updates to the habit and user services.
// Every handler follows the same shape: validate the update, do the work,
// reply; failures are logged and answered with an apology text.
package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avasilyev/tg-habit-reminder/pkg/habit"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
)

type Deps struct {
	Habits *habit.Service
}

var deps Deps

// Setup injects the service layer. Call once before registering handlers.
func Setup(d Deps) {
	deps = d
}

func sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func sendWithKeyboard(ctx context.Context, b *bot.Bot, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}); err != nil {
		logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func sendApology(ctx context.Context, b *bot.Bot, chatID int64) {
	sendText(ctx, b, chatID, "Something went wrong. Please try again later.")
}
