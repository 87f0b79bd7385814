// Package validate checks user-supplied form answers before they reach the
// storage or scheduling layers. The dialog layer re-prompts on any failure,
// so every check here is a plain yes/no.
package validate

import (
	"regexp"
	"strconv"
)

var (
	timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	durationPattern  = regexp.MustCompile(`^(?:[1-9]|[1-9][0-9]|[12][0-9]{2}|3[0-5][0-9]|36[0-5])$`)
	usernamePattern  = regexp.MustCompile(`^[a-zA-Z]+$`)
	phonePattern     = regexp.MustCompile(`^8\d{10}$`)
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	agePattern       = regexp.MustCompile(`^(?:[1-9]|[1-9][0-9])$`)
	passwordPattern  = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)

	passwordLetter  = regexp.MustCompile(`[a-zA-Z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)
)

// TimeOfDay reports whether s is a valid "HH:MM" wall-clock time,
// 00:00 through 23:59. Both scheduler and dialog layers rely on this
// being checked before Schedule/Reschedule is called.
func TimeOfDay(s string) bool {
	if !timeOfDayPattern.MatchString(s) {
		return false
	}
	hour, minute, ok := SplitTimeOfDay(s)
	if !ok {
		return false
	}
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

// SplitTimeOfDay parses "HH:MM" into its components without range checks.
func SplitTimeOfDay(s string) (hour, minute int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(s[3:])
	if err != nil {
		return 0, 0, false
	}
	return hour, minute, true
}

// Duration accepts planned habit durations of 1 through 365 days.
func Duration(s string) bool {
	return durationPattern.MatchString(s)
}

func Username(s string) bool {
	return usernamePattern.MatchString(s) && len(s) <= 25
}

func Phone(s string) bool {
	return phonePattern.MatchString(s)
}

func Email(s string) bool {
	return emailPattern.MatchString(s)
}

func Age(s string) bool {
	return agePattern.MatchString(s)
}

// Password requires at least 8 characters with a letter, a digit and one of
// @$!%*?& — the same policy the registration form always had.
func Password(s string) bool {
	return passwordPattern.MatchString(s) &&
		passwordLetter.MatchString(s) &&
		passwordDigit.MatchString(s) &&
		passwordSpecial.MatchString(s)
}
