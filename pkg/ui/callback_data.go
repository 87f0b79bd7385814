// Package ui builds the inline keyboards and encodes the callback data behind
// their buttons. Callback payloads travel through Telegram and come back
// verbatim, so Decode treats them as untrusted input.
package ui

import (
	"errors"
	"strconv"
	"strings"
)

const (
	CallbackPrefix     = "h:"
	MaxCallbackDataLen = 64
)

// Kind names what a button does. Kinds that act on one habit carry its id;
// profile and habit edits additionally carry the field to change.
type Kind string

const (
	KindMenu          Kind = "menu"
	KindRegister      Kind = "reg"
	KindLogin         Kind = "login"
	KindNewHabit      Kind = "new"
	KindHabitList     Kind = "list"
	KindCompletedList Kind = "done_list"
	KindProfile       Kind = "profile"
	KindProfileEdit   Kind = "pedit"
	KindHabitInfo     Kind = "info"
	KindHabitEdit     Kind = "edit"
	KindHabitDelete   Kind = "del"
	KindMarkDone      Kind = "mark"
	KindMarkSkip      Kind = "skip"
)

// Editable field tags carried by KindProfileEdit and KindHabitEdit.
const (
	FieldName     = "name"
	FieldDuration = "duration"
	FieldComments = "comments"
	FieldTime     = "time"
	FieldFullName = "fullname"
	FieldAge      = "age"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldCity     = "city"
)

type Action struct {
	Kind    Kind
	Field   string
	HabitID uint
}

var (
	ErrBadCallback = errors.New("malformed callback data")

	habitKinds = map[Kind]bool{
		KindHabitInfo:   true,
		KindHabitEdit:   true,
		KindHabitDelete: true,
		KindMarkDone:    true,
		KindMarkSkip:    true,
	}
	plainKinds = map[Kind]bool{
		KindMenu:          true,
		KindRegister:      true,
		KindLogin:         true,
		KindNewHabit:      true,
		KindHabitList:     true,
		KindCompletedList: true,
		KindProfile:       true,
	}
)

// Encode renders an Action as "h:<kind>[:<field>][:<id>]".
func Encode(a Action) (string, error) {
	var parts []string
	switch {
	case plainKinds[a.Kind]:
		parts = []string{string(a.Kind)}
	case a.Kind == KindProfileEdit:
		if a.Field == "" {
			return "", ErrBadCallback
		}
		parts = []string{string(a.Kind), a.Field}
	case a.Kind == KindHabitEdit && a.Field != "":
		parts = []string{string(a.Kind), a.Field, strconv.FormatUint(uint64(a.HabitID), 10)}
	case habitKinds[a.Kind]:
		if a.HabitID == 0 {
			return "", ErrBadCallback
		}
		parts = []string{string(a.Kind), strconv.FormatUint(uint64(a.HabitID), 10)}
	default:
		return "", ErrBadCallback
	}

	data := CallbackPrefix + strings.Join(parts, ":")
	if len(data) > MaxCallbackDataLen {
		return "", ErrBadCallback
	}
	return data, nil
}

// Decode parses callback data back into an Action.
func Decode(data string) (Action, error) {
	if data == "" || len(data) > MaxCallbackDataLen || !strings.HasPrefix(data, CallbackPrefix) {
		return Action{}, ErrBadCallback
	}

	parts := strings.Split(data[len(CallbackPrefix):], ":")
	kind := Kind(parts[0])

	switch {
	case plainKinds[kind]:
		if len(parts) != 1 {
			return Action{}, ErrBadCallback
		}
		return Action{Kind: kind}, nil

	case kind == KindProfileEdit:
		if len(parts) != 2 || !profileField(parts[1]) {
			return Action{}, ErrBadCallback
		}
		return Action{Kind: kind, Field: parts[1]}, nil

	case kind == KindHabitEdit:
		switch len(parts) {
		case 2: // edit menu for a habit
			id, err := parseHabitID(parts[1])
			if err != nil {
				return Action{}, err
			}
			return Action{Kind: kind, HabitID: id}, nil
		case 3:
			if !habitField(parts[1]) {
				return Action{}, ErrBadCallback
			}
			id, err := parseHabitID(parts[2])
			if err != nil {
				return Action{}, err
			}
			return Action{Kind: kind, Field: parts[1], HabitID: id}, nil
		default:
			return Action{}, ErrBadCallback
		}

	case habitKinds[kind]:
		if len(parts) != 2 {
			return Action{}, ErrBadCallback
		}
		id, err := parseHabitID(parts[1])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, HabitID: id}, nil

	default:
		return Action{}, ErrBadCallback
	}
}

func parseHabitID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrBadCallback
	}
	return uint(id), nil
}

func habitField(s string) bool {
	switch s {
	case FieldName, FieldDuration, FieldComments, FieldTime:
		return true
	}
	return false
}

func profileField(s string) bool {
	switch s {
	case FieldFullName, FieldAge, FieldPhone, FieldEmail, FieldCity:
		return true
	}
	return false
}
