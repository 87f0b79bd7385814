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

// HandleMessage is the default handler: any plain text is an answer to
// whatever wizard the user is in the middle of.
func HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleMessage")
		return
	}
	botUserID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	state, form, err := dialog.Load(ctx, botUserID)
	if err != nil {
		logger.Error("failed to load dialog state", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	if state == dialog.StateNone {
		sendText(ctx, b, chatID, "I didn't catch that. Send /start to open the menu or /help for commands.")
		return
	}

	res := dialog.Advance(state, text, form)
	if !res.Done {
		if err := dialog.Save(ctx, botUserID, res.Next, form); err != nil {
			logger.Error("failed to save dialog state", "user_id", botUserID, "error", err)
			sendApology(ctx, b, chatID)
			return
		}
		sendText(ctx, b, chatID, res.Reply)
		return
	}

	if err := dialog.Clear(ctx, botUserID); err != nil {
		logger.Error("failed to clear dialog state", "user_id", botUserID, "error", err)
	}
	finishWizard(ctx, b, state, form, botUserID, chatID)
}

// finishWizard runs the service call a completed form was collected for.
// The state argument is the wizard's final step, which identifies the wizard.
func finishWizard(ctx context.Context, b *bot.Bot, state string, form dialog.Form, botUserID, chatID int64) {
	switch state {
	case dialog.StateRegPassword:
		finishRegistration(ctx, b, form, botUserID, chatID)
	case dialog.StateLoginPassword:
		finishLogin(ctx, b, form, botUserID, chatID)
	case dialog.StateHabitTime:
		finishHabitCreate(ctx, b, form, botUserID, chatID)
	case dialog.StateEditHabitName, dialog.StateEditHabitDuration,
		dialog.StateEditHabitComments, dialog.StateEditHabitTime:
		finishHabitEdit(ctx, b, state, form, botUserID, chatID)
	case dialog.StateProfileFullName, dialog.StateProfileAge, dialog.StateProfilePhone,
		dialog.StateProfileEmail, dialog.StateProfileCity:
		finishProfileEdit(ctx, b, form, botUserID, chatID)
	default:
		logger.Error("completed wizard has no finisher", "state", state)
		sendApology(ctx, b, chatID)
	}
}

func finishRegistration(ctx context.Context, b *bot.Bot, form dialog.Form, botUserID, chatID int64) {
	u, err := user.Register(ctx, user.RegisterInput{
		BotUserID: botUserID,
		ChatID:    chatID,
		Nickname:  form[dialog.FieldNickname],
		FullName:  form[dialog.FieldFullName],
		Age:       form[dialog.FieldAge],
		Phone:     form[dialog.FieldPhone],
		Email:     form[dialog.FieldEmail],
		City:      form[dialog.FieldCity],
		Password:  form[dialog.FieldPassword],
	})
	if errors.Is(err, user.ErrAlreadyRegistered) {
		sendText(ctx, b, chatID, "That nickname is taken, or this Telegram account is already registered. Send /start to try again.")
		return
	}
	if err != nil {
		logger.Error("registration failed", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}

	text, keyboard := ui.RenderMenu(displayName(u.FullName, u.Nickname))
	sendWithKeyboard(ctx, b, chatID, "You're all set!\n\n"+text, keyboard)
}

func finishLogin(ctx context.Context, b *bot.Bot, form dialog.Form, botUserID, chatID int64) {
	u, err := user.Authenticate(ctx, form[dialog.FieldNickname], form[dialog.FieldPassword])
	if errors.Is(err, user.ErrInvalidCredentials) {
		sendText(ctx, b, chatID, "Wrong nickname or password. Send /start to try again.")
		return
	}
	if err != nil {
		logger.Error("login failed", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}

	if err := user.BindChat(ctx, u.BotUserID, chatID); err != nil {
		logger.Warn("failed to bind chat", "user_id", u.BotUserID, "error", err)
	}
	text, keyboard := ui.RenderMenu(displayName(u.FullName, u.Nickname))
	sendWithKeyboard(ctx, b, chatID, text, keyboard)
}

func finishHabitCreate(ctx context.Context, b *bot.Bot, form dialog.Form, botUserID, chatID int64) {
	h, err := deps.Habits.Create(ctx, habit.CreateInput{
		BotUserID:    botUserID,
		Name:         form[dialog.FieldHabitName],
		Duration:     form.Duration(),
		Comments:     form[dialog.FieldHabitComments],
		ReminderTime: form[dialog.FieldHabitTime],
	})
	if err != nil {
		logger.Error("failed to create habit", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	sendText(ctx, b, chatID, fmt.Sprintf(
		"%q is on. I'll check on you every day at %s for %d days.",
		h.Name, h.ReminderTime, h.Duration))
}

func finishHabitEdit(ctx context.Context, b *bot.Bot, state string, form dialog.Form, botUserID, chatID int64) {
	habitID, ok := form.HabitID()
	if !ok {
		logger.Error("edit wizard finished without a habit id", "user_id", botUserID)
		sendApology(ctx, b, chatID)
		return
	}
	if !ownsHabit(ctx, b, botUserID, chatID, habitID) {
		return
	}

	var in habit.UpdateInput
	switch state {
	case dialog.StateEditHabitName:
		name := form[dialog.FieldHabitName]
		in.Name = &name
	case dialog.StateEditHabitDuration:
		duration := form.Duration()
		in.Duration = &duration
	case dialog.StateEditHabitComments:
		comments := form[dialog.FieldHabitComments]
		in.Comments = &comments
	case dialog.StateEditHabitTime:
		timeOfDay := form[dialog.FieldHabitTime]
		in.ReminderTime = &timeOfDay
	}

	h, err := deps.Habits.Update(ctx, habitID, in)
	if errors.Is(err, habit.ErrHabitNotFound) {
		sendText(ctx, b, chatID, "That habit no longer exists.")
		return
	}
	if err != nil {
		logger.Error("failed to update habit", "habit_id", habitID, "error", err)
		sendText(ctx, b, chatID, "I couldn't apply that change. It may conflict with the habit's progress.")
		return
	}
	sendText(ctx, b, chatID, fmt.Sprintf("%q updated.", h.Name))
}

func finishProfileEdit(ctx context.Context, b *bot.Bot, form dialog.Form, botUserID, chatID int64) {
	var ch user.ProfileChanges
	if v, ok := form[dialog.FieldFullName]; ok {
		ch.FullName = &v
	}
	if v, ok := form[dialog.FieldAge]; ok {
		ch.Age = &v
	}
	if v, ok := form[dialog.FieldPhone]; ok {
		ch.Phone = &v
	}
	if v, ok := form[dialog.FieldEmail]; ok {
		ch.Email = &v
	}
	if v, ok := form[dialog.FieldCity]; ok {
		ch.City = &v
	}

	u, err := user.UpdateProfile(ctx, botUserID, ch)
	if err != nil {
		logger.Error("failed to update profile", "user_id", botUserID, "error", err)
		sendApology(ctx, b, chatID)
		return
	}
	text, keyboard := ui.RenderProfile(*u)
	sendWithKeyboard(ctx, b, chatID, text, keyboard)
}
