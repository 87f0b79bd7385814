// pkg/habit/tracker.go
//
// The completion tracker records a habit's daily outcome exactly once per
// calendar day. The (habit_id, created_date) row in completion_counters is
// the idempotency gate: whoever inserts it first wins, everyone else is a
// no-op. A user tapping "done" just before midnight and the automatic sweep
// firing just after both funnel through the same gate.
package habit

import (
	"context"
	"errors"
	"time"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"gorm.io/gorm"
)

// nowFunc is swapped in tests to walk the calendar.
var nowFunc = time.Now

// errAlreadyProcessed aborts the marking transaction when today's row turns
// out to exist; it is mapped to a soft (false, nil) result, never surfaced.
var errAlreadyProcessed = errors.New("habit already processed today")

// Today returns the current calendar day under the process-local clock,
// normalized so equal days compare equal in the database.
func Today() time.Time {
	t := nowFunc()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MarkCompleted records today's outcome as completed. It returns false when
// today was already processed for this habit, by the user or by the sweep.
func MarkCompleted(ctx context.Context, habitID uint) (bool, error) {
	return mark(ctx, habitID, true)
}

// MarkNotCompleted records today's outcome as not completed. Same idempotency
// contract as MarkCompleted.
func MarkNotCompleted(ctx context.Context, habitID uint) (bool, error) {
	return mark(ctx, habitID, false)
}

func mark(ctx context.Context, habitID uint, completed bool) (bool, error) {
	var habit db.Habit
	if err := db.DB.WithContext(ctx).First(&habit, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrHabitNotFound
		}
		return false, err
	}

	day := Today()
	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := db.CompletionCounter{
			UserID:      habit.UserID,
			HabitID:     habitID,
			CreatedDate: day,
		}
		if completed {
			counter.CompletedCount = 1
		} else {
			counter.NotCompletedCount = 1
		}
		// The unique (habit_id, created_date) index is the sole gate: the
		// first insert of the day wins, every later mark and the sweep land
		// on the constraint.
		if err := tx.Create(&counter).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyProcessed
			}
			return err
		}

		res := tx.Model(&db.Habit{}).
			Where("id = ? AND remained_days < duration", habitID).
			UpdateColumn("remained_days", gorm.Expr("remained_days + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Habit already reached its duration; keep the counter bound and
			// roll the whole transaction back.
			return errAlreadyProcessed
		}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RunDailySweep marks every active habit that has no completion row for
// today as not completed. Runs once per calendar day, right after midnight.
// Failures are isolated per habit so one bad row cannot stall the rest.
func RunDailySweep(ctx context.Context) (int, error) {
	logger.Info("starting daily completion sweep")

	var users []db.User
	if err := db.DB.WithContext(ctx).Select("id").Find(&users).Error; err != nil {
		return 0, err
	}

	processed := 0
	for _, user := range users {
		var habits []db.Habit
		err := db.DB.WithContext(ctx).
			Where("user_id = ? AND duration > remained_days", user.ID).
			Find(&habits).Error
		if err != nil {
			logger.Warn("failed to list active habits for sweep", "user_id", user.ID, "error", err)
			continue
		}

		for _, h := range habits {
			marked, err := MarkNotCompleted(ctx, h.ID)
			if err != nil {
				logger.Warn("failed to sweep habit", "habit_id", h.ID, "user_id", user.ID, "error", err)
				continue
			}
			if marked {
				processed++
			}
		}
	}

	logger.Info("daily completion sweep finished", "habits_processed", processed)
	return processed, nil
}
