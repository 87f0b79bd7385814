package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avasilyev/tg-habit-reminder/pkg/bot/reminders"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/ui"
	"github.com/avasilyev/tg-habit-reminder/pkg/user"
)

func HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleStart")
		return
	}
	botUserID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	u, err := user.ByBotUserID(ctx, botUserID)
	if errors.Is(err, user.ErrNotFound) {
		text, keyboard := ui.RenderWelcome()
		sendWithKeyboard(ctx, b, chatID, text, keyboard)
		return
	}
	if err != nil {
		logger.Error("failed to load user in HandleStart", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}

	// Reminders go to the chat the user last talked to us from.
	if err := user.BindChat(ctx, botUserID, chatID); err != nil {
		logger.Warn("failed to bind chat", "user_id", botUserID, "error", err)
	}

	// Opening the menu tidies away old reminder messages.
	if err := reminders.CleanupChat(ctx, b, chatID); err != nil {
		logger.Warn("failed to clean up chat", "chat_id", chatID, "error", err)
	}

	text, keyboard := ui.RenderMenu(displayName(u.FullName, u.Nickname))
	sendWithKeyboard(ctx, b, chatID, text, keyboard)
}

func HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleHelp")
		return
	}
	sendText(ctx, b, update.Message.Chat.ID,
		"Commands:\n"+
			"* /start: open the menu (or register first)\n"+
			"* /help: this message\n"+
			"* /about: what this bot is for\n\n"+
			"Create a habit, pick a daily reminder time, and answer the daily "+
			"check-in with Done or Not today. A habit is complete once you have "+
			"checked in for its whole duration.")
}

func HandleAbout(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleAbout")
		return
	}
	sendText(ctx, b, update.Message.Chat.ID,
		"I help you build habits one day at a time. Tell me what to practice "+
			"and when to remind you, and I will keep score until the habit sticks.")
}

func displayName(fullName, nickname string) string {
	if fullName != "" {
		return fullName
	}
	return nickname
}
