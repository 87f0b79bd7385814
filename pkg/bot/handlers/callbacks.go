package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avasilyev/tg-habit-reminder/pkg/bot/dialog"
	"github.com/avasilyev/tg-habit-reminder/pkg/habit"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/ui"
	"github.com/avasilyev/tg-habit-reminder/pkg/user"
)

// HandleCallback dispatches every inline-keyboard press.
func HandleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		logger.Error("invalid update in HandleCallback")
		return
	}
	cb := update.CallbackQuery

	callbackID := cb.ID
	answered := false
	answerCallback := func(text string) {
		if answered || callbackID == "" {
			return
		}
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: callbackID,
			Text:            text,
		}); err != nil {
			logger.Error("failed to answer callback query", "error", err)
		}
		answered = true
	}

	botUserID := cb.From.ID
	chatID := botUserID
	if cb.Message.Message != nil && cb.Message.Message.Chat.ID != 0 {
		chatID = cb.Message.Message.Chat.ID
	}

	action, err := ui.Decode(cb.Data)
	if err != nil {
		logger.Error("failed to decode callback", "data", cb.Data, "error", err)
		answerCallback("Unknown command")
		return
	}

	switch action.Kind {
	case ui.KindRegister:
		answerCallback("")
		startWizard(ctx, b, botUserID, chatID, dialog.StateRegNickname, dialog.Form{})
	case ui.KindLogin:
		answerCallback("")
		startWizard(ctx, b, botUserID, chatID, dialog.StateLoginNickname, dialog.Form{})

	case ui.KindMenu:
		answerCallback("")
		showMenu(ctx, b, botUserID, chatID)

	case ui.KindNewHabit:
		if !isRegistered(ctx, b, botUserID, chatID, answerCallback) {
			return
		}
		answerCallback("")
		startWizard(ctx, b, botUserID, chatID, dialog.StateHabitName, dialog.Form{})

	case ui.KindHabitList:
		if !isRegistered(ctx, b, botUserID, chatID, answerCallback) {
			return
		}
		answerCallback("")
		habits, err := deps.Habits.Active(ctx, botUserID)
		if err != nil {
			logger.Error("failed to list habits", "user_id", botUserID, "error", err)
			sendApology(ctx, b, chatID)
			return
		}
		text, keyboard := ui.RenderHabitList(habits)
		sendWithKeyboard(ctx, b, chatID, text, keyboard)

	case ui.KindCompletedList:
		if !isRegistered(ctx, b, botUserID, chatID, answerCallback) {
			return
		}
		answerCallback("")
		habits, err := deps.Habits.Completed(ctx, botUserID)
		if err != nil {
			logger.Error("failed to list completed habits", "user_id", botUserID, "error", err)
			sendApology(ctx, b, chatID)
			return
		}
		text, keyboard := ui.RenderCompletedList(habits)
		sendWithKeyboard(ctx, b, chatID, text, keyboard)

	case ui.KindProfile:
		answerCallback("")
		u, err := user.ByBotUserID(ctx, botUserID)
		if err != nil {
			sendText(ctx, b, chatID, "You are not registered yet. Send /start to begin.")
			return
		}
		text, keyboard := ui.RenderProfile(*u)
		sendWithKeyboard(ctx, b, chatID, text, keyboard)

	case ui.KindProfileEdit:
		if !isRegistered(ctx, b, botUserID, chatID, answerCallback) {
			return
		}
		answerCallback("")
		startWizard(ctx, b, botUserID, chatID, profileEditState(action.Field), dialog.Form{})

	case ui.KindHabitInfo:
		answerCallback("")
		showHabitCard(ctx, b, botUserID, chatID, action.HabitID)

	case ui.KindHabitEdit:
		if !ownsHabit(ctx, b, botUserID, chatID, action.HabitID) {
			answerCallback("")
			return
		}
		answerCallback("")
		if action.Field == "" {
			h, err := deps.Habits.ByID(ctx, action.HabitID)
			if err != nil {
				sendText(ctx, b, chatID, "That habit no longer exists.")
				return
			}
			text, keyboard := ui.RenderHabitEditMenu(*h)
			sendWithKeyboard(ctx, b, chatID, text, keyboard)
			return
		}
		form := dialog.Form{dialog.FieldHabitID: fmt.Sprintf("%d", action.HabitID)}
		startWizard(ctx, b, botUserID, chatID, habitEditState(action.Field), form)

	case ui.KindHabitDelete:
		if !ownsHabit(ctx, b, botUserID, chatID, action.HabitID) {
			answerCallback("")
			return
		}
		err := deps.Habits.Delete(ctx, action.HabitID)
		if errors.Is(err, habit.ErrHabitNotFound) {
			answerCallback("Already gone")
			return
		}
		if err != nil {
			logger.Error("failed to delete habit", "habit_id", action.HabitID, "error", err)
			answerCallback("Something went wrong")
			return
		}
		answerCallback("Deleted")
		habits, err := deps.Habits.Active(ctx, botUserID)
		if err != nil {
			logger.Error("failed to list habits", "user_id", botUserID, "error", err)
			return
		}
		text, keyboard := ui.RenderHabitList(habits)
		sendWithKeyboard(ctx, b, chatID, text, keyboard)

	case ui.KindMarkDone, ui.KindMarkSkip:
		if !ownsHabit(ctx, b, botUserID, chatID, action.HabitID) {
			answerCallback("")
			return
		}
		mark := habit.MarkCompleted
		if action.Kind == ui.KindMarkSkip {
			mark = habit.MarkNotCompleted
		}
		counted, err := mark(ctx, action.HabitID)
		if errors.Is(err, habit.ErrHabitNotFound) {
			answerCallback("That habit no longer exists")
			return
		}
		if err != nil {
			logger.Error("failed to mark habit", "habit_id", action.HabitID, "error", err)
			answerCallback("Something went wrong")
			return
		}
		if !counted {
			answerCallback("Already recorded for today")
			return
		}
		if action.Kind == ui.KindMarkDone {
			answerCallback("Counted. Well done!")
		} else {
			answerCallback("Counted. Tomorrow is another day.")
		}

	default:
		answerCallback("Unknown command")
	}
}

func startWizard(ctx context.Context, b *bot.Bot, botUserID, chatID int64, state string, form dialog.Form) {
	if !dialog.Known(state) {
		logger.Error("attempted to start unknown wizard state", "state", state)
		sendApology(ctx, b, chatID)
		return
	}
	if err := dialog.Save(ctx, botUserID, state, form); err != nil {
		logger.Error("failed to start wizard", "user_id", botUserID, "state", state, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	sendText(ctx, b, chatID, dialog.Prompt(state))
}

func showMenu(ctx context.Context, b *bot.Bot, botUserID, chatID int64) {
	u, err := user.ByBotUserID(ctx, botUserID)
	if errors.Is(err, user.ErrNotFound) {
		text, keyboard := ui.RenderWelcome()
		sendWithKeyboard(ctx, b, chatID, text, keyboard)
		return
	}
	if err != nil {
		logger.Error("failed to load user", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	text, keyboard := ui.RenderMenu(displayName(u.FullName, u.Nickname))
	sendWithKeyboard(ctx, b, chatID, text, keyboard)
}

func showHabitCard(ctx context.Context, b *bot.Bot, botUserID, chatID int64, habitID uint) {
	if !ownsHabit(ctx, b, botUserID, chatID, habitID) {
		return
	}
	h, err := deps.Habits.ByID(ctx, habitID)
	if err != nil {
		sendText(ctx, b, chatID, "That habit no longer exists.")
		return
	}
	sum, err := deps.Habits.CompletionSummary(ctx, habitID)
	if err != nil {
		logger.Error("failed to load completion summary", "habit_id", habitID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	text, keyboard := ui.RenderHabitCard(*h, sum.Completed, sum.NotCompleted)
	sendWithKeyboard(ctx, b, chatID, text, keyboard)
}

// isRegistered gates actions that need an account.
func isRegistered(ctx context.Context, b *bot.Bot, botUserID, chatID int64, answerCallback func(string)) bool {
	_, err := user.ByBotUserID(ctx, botUserID)
	if errors.Is(err, user.ErrNotFound) {
		answerCallback("")
		sendText(ctx, b, chatID, "You are not registered yet. Send /start to begin.")
		return false
	}
	if err != nil {
		logger.Error("failed to load user", "user_id", botUserID, "error", err)
		answerCallback("Something went wrong")
		return false
	}
	return true
}

// ownsHabit checks the habit exists and belongs to the caller. Buttons carry
// habit ids through Telegram, so the ids that come back are untrusted.
func ownsHabit(ctx context.Context, b *bot.Bot, botUserID, chatID int64, habitID uint) bool {
	u, err := user.ByBotUserID(ctx, botUserID)
	if err != nil {
		sendText(ctx, b, chatID, "You are not registered yet. Send /start to begin.")
		return false
	}
	h, err := deps.Habits.ByID(ctx, habitID)
	if errors.Is(err, habit.ErrHabitNotFound) {
		sendText(ctx, b, chatID, "That habit no longer exists.")
		return false
	}
	if err != nil {
		logger.Error("failed to load habit", "habit_id", habitID, "error", err)
		sendApology(ctx, b, chatID)
		return false
	}
	if h.UserID != u.ID {
		logger.Warn("habit access denied", "habit_id", habitID, "user_id", botUserID)
		sendText(ctx, b, chatID, "That habit no longer exists.")
		return false
	}
	return true
}

func habitEditState(field string) string {
	switch field {
	case ui.FieldName:
		return dialog.StateEditHabitName
	case ui.FieldDuration:
		return dialog.StateEditHabitDuration
	case ui.FieldComments:
		return dialog.StateEditHabitComments
	case ui.FieldTime:
		return dialog.StateEditHabitTime
	}
	return dialog.StateNone
}

func profileEditState(field string) string {
	switch field {
	case ui.FieldFullName:
		return dialog.StateProfileFullName
	case ui.FieldAge:
		return dialog.StateProfileAge
	case ui.FieldPhone:
		return dialog.StateProfilePhone
	case ui.FieldEmail:
		return dialog.StateProfileEmail
	case ui.FieldCity:
		return dialog.StateProfileCity
	}
	return dialog.StateNone
}
