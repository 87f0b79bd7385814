package habit

import (
	"errors"
	"fmt"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrUserNotFound  = errors.New("user not found")
)

// SchedulingError reports a failed scheduler operation with enough context
// to reconcile by hand if the nightly pass cannot.
type SchedulingError struct {
	Op      string
	HabitID uint
	UserID  uint
	Err     error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("%s failed for habit %d (user %d): %v", e.Op, e.HabitID, e.UserID, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}
