// Package reminders delivers the daily habit nudges. The scheduler only knows
// a Task to run; everything Telegram-shaped lives here.
package reminders

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/ui"
	"github.com/avasilyev/tg-habit-reminder/pkg/user"
)

//go:embed wisdom.txt
var wisdomRaw string

var wisdomLines = func() []string {
	var lines []string
	for _, line := range strings.Split(wisdomRaw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}()

const sendTimeout = 30 * time.Second

type Sender struct {
	b *bot.Bot
}

func NewSender(b *bot.Bot) *Sender {
	return &Sender{b: b}
}

// Remind fires from a scheduler job, so it has no caller to report errors to:
// failures are logged and the next day's run tries again.
func (s *Sender) Remind(botUserID int64, habitID uint, habitName string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	u, err := user.ByBotUserID(ctx, botUserID)
	if err != nil {
		logger.Error("failed to resolve reminder recipient", "user_id", botUserID, "error", err)
		return
	}
	chatID := u.ChatID
	if chatID == 0 {
		chatID = botUserID
	}

	text := fmt.Sprintf("%s\n\nDid you keep up with %q today?", wisdom(), habitName)
	msg, err := s.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: ui.RenderReminderKeyboard(habitID),
	})
	if err != nil {
		logger.Error("failed to send reminder", "user_id", botUserID, "habit_id", habitID, "error", err)
		return
	}

	if err := recordMessage(ctx, chatID, botUserID, msg.ID); err != nil {
		logger.Warn("failed to record reminder message", "chat_id", chatID, "error", err)
	}
}

func wisdom() string {
	return wisdomLines[rand.Intn(len(wisdomLines))]
}

// recordMessage logs a sent message so CleanupChat can delete it later.
func recordMessage(ctx context.Context, chatID, botUserID int64, messageID int) error {
	return db.DB.WithContext(ctx).Create(&db.MessageLog{
		ChatID:    chatID,
		MessageID: messageID,
		BotUserID: botUserID,
		Timestamp: time.Now().UTC(),
	}).Error
}

// CleanupChat deletes every message previously logged for the chat and drops
// the log rows. Telegram refuses to delete old messages; those failures are
// only logged and the row is dropped anyway.
func CleanupChat(ctx context.Context, b *bot.Bot, chatID int64) error {
	var rows []db.MessageLog
	if err := db.DB.WithContext(ctx).Where("chat_id = ?", chatID).Find(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		_, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    row.ChatID,
			MessageID: row.MessageID,
		})
		if err != nil {
			logger.Warn("failed to delete chat message", "chat_id", row.ChatID, "message_id", row.MessageID, "error", err)
		}
	}

	return db.DB.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&db.MessageLog{}).Error
}
