// Package dialog drives the multi-step text wizards: registration, login,
// habit creation and the single-field edit prompts. Each wizard is a chain of
// states; a transition is a pure function of the current state and the user's
// answer, so the engine has no knowledge of Telegram or storage.
package dialog

import (
	"strconv"

	"github.com/avasilyev/tg-habit-reminder/pkg/validate"
)

// Form accumulates the answers collected so far, keyed by field name.
type Form map[string]string

// Wizard states. A user is in at most one state at a time; the empty state
// means no wizard is active.
const (
	StateNone = ""

	StateRegNickname = "reg_nickname"
	StateRegFullName = "reg_fullname"
	StateRegAge      = "reg_age"
	StateRegPhone    = "reg_phone"
	StateRegEmail    = "reg_email"
	StateRegCity     = "reg_city"
	StateRegPassword = "reg_password"

	StateLoginNickname = "login_nickname"
	StateLoginPassword = "login_password"

	StateHabitName     = "habit_name"
	StateHabitDuration = "habit_duration"
	StateHabitComments = "habit_comments"
	StateHabitTime     = "habit_time"

	StateEditHabitName     = "edit_habit_name"
	StateEditHabitDuration = "edit_habit_duration"
	StateEditHabitComments = "edit_habit_comments"
	StateEditHabitTime     = "edit_habit_time"

	StateProfileFullName = "profile_fullname"
	StateProfileAge      = "profile_age"
	StateProfilePhone    = "profile_phone"
	StateProfileEmail    = "profile_email"
	StateProfileCity     = "profile_city"
)

// Form field keys. Edit states reuse the create keys, plus FieldHabitID which
// handlers stash before starting an edit wizard.
const (
	FieldNickname = "nickname"
	FieldFullName = "fullname"
	FieldAge      = "age"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldCity     = "city"
	FieldPassword = "password"

	FieldHabitID       = "habit_id"
	FieldHabitName     = "name"
	FieldHabitDuration = "duration"
	FieldHabitComments = "comments"
	FieldHabitTime     = "time"
)

// skipMark lets the user leave an optional field empty.
const skipMark = "-"

type step struct {
	field    string
	prompt   string
	reject   string
	optional bool
	check    func(string) bool
	next     string
}

var steps = map[string]step{
	StateRegNickname: {
		field:  FieldNickname,
		prompt: "Pick a nickname (latin letters only):",
		reject: "Nicknames are latin letters only, up to 25 characters. Try again:",
		check:  validate.Username,
		next:   StateRegFullName,
	},
	StateRegFullName: {
		field:    FieldFullName,
		prompt:   "Your full name (or - to skip):",
		reject:   "That name is too long, 25 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 25 },
		next:     StateRegAge,
	},
	StateRegAge: {
		field:  FieldAge,
		prompt: "How old are you?",
		reject: "Please enter your age as a number from 1 to 99:",
		check:  validate.Age,
		next:   StateRegPhone,
	},
	StateRegPhone: {
		field:    FieldPhone,
		prompt:   "Phone number, 8XXXXXXXXXX (or - to skip):",
		reject:   "Phone numbers look like 8XXXXXXXXXX. Try again:",
		optional: true,
		check:    validate.Phone,
		next:     StateRegEmail,
	},
	StateRegEmail: {
		field:    FieldEmail,
		prompt:   "Email address (or - to skip):",
		reject:   "That does not look like an email address. Try again:",
		optional: true,
		check:    validate.Email,
		next:     StateRegCity,
	},
	StateRegCity: {
		field:    FieldCity,
		prompt:   "Which city are you in? (or - to skip):",
		reject:   "That city name is too long, 25 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 25 },
		next:     StateRegPassword,
	},
	StateRegPassword: {
		field:  FieldPassword,
		prompt: "Choose a password: at least 8 characters with a letter, a digit and one of @$!%*?&",
		reject: "Too weak. At least 8 characters with a letter, a digit and one of @$!%*?&. Try again:",
		check:  validate.Password,
		next:   StateNone,
	},

	StateLoginNickname: {
		field:  FieldNickname,
		prompt: "Your nickname:",
		reject: "Nicknames are latin letters only. Try again:",
		check:  validate.Username,
		next:   StateLoginPassword,
	},
	StateLoginPassword: {
		field:  FieldPassword,
		prompt: "Your password:",
		reject: "That cannot be a password. Try again:",
		check:  func(s string) bool { return s != "" },
		next:   StateNone,
	},

	StateHabitName: {
		field:  FieldHabitName,
		prompt: "What habit do you want to build?",
		reject: "Habit names are 1 to 50 characters. Try again:",
		check:  func(s string) bool { return len(s) > 0 && len(s) <= 50 },
		next:   StateHabitDuration,
	},
	StateHabitDuration: {
		field:  FieldHabitDuration,
		prompt: "For how many days? (1-365)",
		reject: "Please enter a number of days from 1 to 365:",
		check:  validate.Duration,
		next:   StateHabitComments,
	},
	StateHabitComments: {
		field:    FieldHabitComments,
		prompt:   "Any notes for yourself? (or - to skip)",
		reject:   "Notes are 100 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 100 },
		next:     StateHabitTime,
	},
	StateHabitTime: {
		field:  FieldHabitTime,
		prompt: "When should I remind you? (HH:MM, 24-hour)",
		reject: "Times look like 07:30 or 21:00. Try again:",
		check:  validate.TimeOfDay,
		next:   StateNone,
	},

	StateEditHabitName: {
		field:  FieldHabitName,
		prompt: "New habit name:",
		reject: "Habit names are 1 to 50 characters. Try again:",
		check:  func(s string) bool { return len(s) > 0 && len(s) <= 50 },
		next:   StateNone,
	},
	StateEditHabitDuration: {
		field:  FieldHabitDuration,
		prompt: "New duration in days (1-365):",
		reject: "Please enter a number of days from 1 to 365:",
		check:  validate.Duration,
		next:   StateNone,
	},
	StateEditHabitComments: {
		field:    FieldHabitComments,
		prompt:   "New notes (or - to clear):",
		reject:   "Notes are 100 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 100 },
		next:     StateNone,
	},
	StateEditHabitTime: {
		field:  FieldHabitTime,
		prompt: "New reminder time (HH:MM, 24-hour):",
		reject: "Times look like 07:30 or 21:00. Try again:",
		check:  validate.TimeOfDay,
		next:   StateNone,
	},

	StateProfileFullName: {
		field:    FieldFullName,
		prompt:   "New full name (or - to clear):",
		reject:   "That name is too long, 25 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 25 },
		next:     StateNone,
	},
	StateProfileAge: {
		field:  FieldAge,
		prompt: "New age:",
		reject: "Please enter your age as a number from 1 to 99:",
		check:  validate.Age,
		next:   StateNone,
	},
	StateProfilePhone: {
		field:    FieldPhone,
		prompt:   "New phone number, 8XXXXXXXXXX (or - to clear):",
		reject:   "Phone numbers look like 8XXXXXXXXXX. Try again:",
		optional: true,
		check:    validate.Phone,
		next:     StateNone,
	},
	StateProfileEmail: {
		field:    FieldEmail,
		prompt:   "New email address (or - to clear):",
		reject:   "That does not look like an email address. Try again:",
		optional: true,
		check:    validate.Email,
		next:     StateNone,
	},
	StateProfileCity: {
		field:    FieldCity,
		prompt:   "New city (or - to clear):",
		reject:   "That city name is too long, 25 characters at most. Try again:",
		optional: true,
		check:    func(s string) bool { return len(s) > 0 && len(s) <= 25 },
		next:     StateNone,
	},
}

// Result of feeding one answer into the wizard.
type Result struct {
	Next  string // state to persist; StateNone when the wizard finished
	Reply string // text to send back: next prompt, or the rejection re-prompt
	Done  bool   // the form is complete and ready for the service layer
}

// Prompt returns the question asked on entering a state.
func Prompt(state string) string {
	return steps[state].prompt
}

// Known reports whether state belongs to a wizard.
func Known(state string) bool {
	_, ok := steps[state]
	return ok
}

// Advance feeds one answer into the wizard. On a valid answer the form gains
// the step's field and the wizard moves on; on an invalid one the state stays
// put and Reply carries the re-prompt. Advance never touches storage.
func Advance(state, input string, form Form) Result {
	st, ok := steps[state]
	if !ok {
		return Result{Next: StateNone}
	}

	if st.optional && input == skipMark {
		form[st.field] = ""
	} else if st.check(input) {
		form[st.field] = input
	} else {
		return Result{Next: state, Reply: st.reject}
	}

	if st.next == StateNone {
		return Result{Next: StateNone, Done: true}
	}
	return Result{Next: st.next, Reply: steps[st.next].prompt}
}

// HabitID extracts the habit id an edit wizard was started for.
func (f Form) HabitID() (uint, bool) {
	raw, ok := f[FieldHabitID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// Duration returns the collected duration as an int; the validator has
// already bounded it.
func (f Form) Duration() int {
	n, _ := strconv.Atoi(f[FieldHabitDuration])
	return n
}
