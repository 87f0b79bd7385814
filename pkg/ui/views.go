package ui

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
)

func mustEncode(a Action) string {
	data, err := Encode(a)
	if err != nil {
		// Only reachable through a programming error in a view below.
		panic(err)
	}
	return data
}

// RenderWelcome is the /start screen for users who have not registered yet.
func RenderWelcome() (string, *models.InlineKeyboardMarkup) {
	text := "Hi! I help you build habits: tell me what to practice and when, " +
		"and I will check on you every day.\n\nLet's get you set up."
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Register", CallbackData: mustEncode(Action{Kind: KindRegister})},
				{Text: "Log in", CallbackData: mustEncode(Action{Kind: KindLogin})},
			},
		},
	}
	return text, keyboard
}

// RenderMenu is the home screen for registered users.
func RenderMenu(name string) (string, *models.InlineKeyboardMarkup) {
	text := fmt.Sprintf("Welcome back, %s. What shall we do?", name)
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "New habit", CallbackData: mustEncode(Action{Kind: KindNewHabit})},
				{Text: "My habits", CallbackData: mustEncode(Action{Kind: KindHabitList})},
			},
			{
				{Text: "Completed", CallbackData: mustEncode(Action{Kind: KindCompletedList})},
				{Text: "Profile", CallbackData: mustEncode(Action{Kind: KindProfile})},
			},
		},
	}
	return text, keyboard
}

// RenderHabitList shows one button per habit plus a back row.
func RenderHabitList(habits []db.Habit) (string, *models.InlineKeyboardMarkup) {
	if len(habits) == 0 {
		text := "You have no active habits yet."
		keyboard := &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "New habit", CallbackData: mustEncode(Action{Kind: KindNewHabit})}},
				{{Text: "Back", CallbackData: mustEncode(Action{Kind: KindMenu})}},
			},
		}
		return text, keyboard
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(habits)+1)
	for _, h := range habits {
		label := fmt.Sprintf("%s (%d/%d days)", h.Name, h.RemainedDays, h.Duration)
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         label,
			CallbackData: mustEncode(Action{Kind: KindHabitInfo, HabitID: h.ID}),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{
		Text: "Back", CallbackData: mustEncode(Action{Kind: KindMenu}),
	}})
	return "Your habits:", &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// RenderCompletedList shows finished habits with their lifetime tallies.
func RenderCompletedList(habits []db.Habit) (string, *models.InlineKeyboardMarkup) {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: mustEncode(Action{Kind: KindMenu})}},
		},
	}
	if len(habits) == 0 {
		return "Nothing completed yet. Keep going!", keyboard
	}

	var b strings.Builder
	b.WriteString("Completed habits:\n")
	for _, h := range habits {
		fmt.Fprintf(&b, "\n✅ %s — %d days", h.Name, h.Duration)
	}
	return b.String(), keyboard
}

// RenderHabitCard is the detail screen for one habit.
func RenderHabitCard(h db.Habit, completed, notCompleted int) (string, *models.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", h.Name)
	fmt.Fprintf(&b, "Progress: %d of %d days\n", h.RemainedDays, h.Duration)
	fmt.Fprintf(&b, "Reminder at %s\n", h.ReminderTime)
	fmt.Fprintf(&b, "Done %d times, missed %d times", completed, notCompleted)
	if h.Comments != "" {
		fmt.Fprintf(&b, "\nNotes: %s", h.Comments)
	}

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Edit", CallbackData: mustEncode(Action{Kind: KindHabitEdit, HabitID: h.ID})},
				{Text: "Delete", CallbackData: mustEncode(Action{Kind: KindHabitDelete, HabitID: h.ID})},
			},
			{
				{Text: "Back", CallbackData: mustEncode(Action{Kind: KindHabitList})},
			},
		},
	}
	return b.String(), keyboard
}

// RenderHabitEditMenu lists the editable fields of one habit.
func RenderHabitEditMenu(h db.Habit) (string, *models.InlineKeyboardMarkup) {
	field := func(label, f string) models.InlineKeyboardButton {
		return models.InlineKeyboardButton{
			Text:         label,
			CallbackData: mustEncode(Action{Kind: KindHabitEdit, Field: f, HabitID: h.ID}),
		}
	}
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{field("Name", FieldName), field("Duration", FieldDuration)},
			{field("Notes", FieldComments), field("Time", FieldTime)},
			{{Text: "Back", CallbackData: mustEncode(Action{Kind: KindHabitInfo, HabitID: h.ID})}},
		},
	}
	return fmt.Sprintf("What do you want to change about %q?", h.Name), keyboard
}

// RenderProfile is the profile screen with per-field edit buttons.
func RenderProfile(u db.User) (string, *models.InlineKeyboardMarkup) {
	orDash := func(s string) string {
		if s == "" {
			return "—"
		}
		return s
	}
	text := fmt.Sprintf(
		"Your profile\nNickname: %s\nFull name: %s\nAge: %s\nPhone: %s\nEmail: %s\nCity: %s",
		u.Nickname, orDash(u.FullName), u.Age, orDash(u.Phone), orDash(u.Email), orDash(u.City),
	)

	field := func(label, f string) models.InlineKeyboardButton {
		return models.InlineKeyboardButton{
			Text:         label,
			CallbackData: mustEncode(Action{Kind: KindProfileEdit, Field: f}),
		}
	}
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{field("Full name", FieldFullName), field("Age", FieldAge)},
			{field("Phone", FieldPhone), field("Email", FieldEmail)},
			{field("City", FieldCity)},
			{{Text: "Back", CallbackData: mustEncode(Action{Kind: KindMenu})}},
		},
	}
	return text, keyboard
}

// RenderReminderKeyboard is attached to every reminder message.
func RenderReminderKeyboard(habitID uint) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Done ✅", CallbackData: mustEncode(Action{Kind: KindMarkDone, HabitID: habitID})},
				{Text: "Not today ❌", CallbackData: mustEncode(Action{Kind: KindMarkSkip, HabitID: habitID})},
			},
		},
	}
}
