// pkg/habit/service.go
package habit

import (
	"context"
	"errors"
	"fmt"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/validate"
	"gorm.io/gorm"
)

// Service is the habit CRUD layer. Every mutation is mirrored to the
// reconciler so scheduler state follows habit state.
type Service struct {
	rec *Reconciler
}

func NewService(rec *Reconciler) *Service {
	return &Service{rec: rec}
}

type CreateInput struct {
	BotUserID    int64
	Name         string
	Duration     int
	Comments     string
	ReminderTime string
}

type UpdateInput struct {
	Name         *string
	Duration     *int
	Comments     *string
	ReminderTime *string
}

// Summary is the cumulative completion tally for one habit.
type Summary struct {
	Completed    int
	NotCompleted int
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*db.Habit, error) {
	if in.Name == "" || len(in.Name) > 50 {
		return nil, fmt.Errorf("invalid habit name %q", in.Name)
	}
	if in.Duration < 1 || in.Duration > 365 {
		return nil, fmt.Errorf("invalid habit duration %d", in.Duration)
	}
	if !validate.TimeOfDay(in.ReminderTime) {
		return nil, fmt.Errorf("invalid reminder time %q", in.ReminderTime)
	}

	user, err := userByBotID(ctx, in.BotUserID)
	if err != nil {
		return nil, err
	}

	h := db.Habit{
		UserID:       user.ID,
		Name:         in.Name,
		Duration:     in.Duration,
		Comments:     in.Comments,
		ReminderTime: in.ReminderTime,
		CreatedDate:  Today(),
	}
	if err := db.DB.WithContext(ctx).Create(&h).Error; err != nil {
		return nil, err
	}

	// A scheduling failure is not fatal: the habit exists and the nightly
	// reconciliation pass will pick it up.
	if err := s.rec.HabitCreated(ctx, h); err != nil {
		logger.Warn("failed to schedule reminder for new habit", "habit_id", h.ID, "error", err)
	}
	return &h, nil
}

func (s *Service) Update(ctx context.Context, habitID uint, in UpdateInput) (*db.Habit, error) {
	var h db.Habit
	if err := db.DB.WithContext(ctx).First(&h, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, err
	}

	wasComplete := h.RemainedDays >= h.Duration
	timeChanged := false
	if in.Name != nil {
		if *in.Name == "" || len(*in.Name) > 50 {
			return nil, fmt.Errorf("invalid habit name %q", *in.Name)
		}
		h.Name = *in.Name
	}
	if in.Duration != nil {
		if *in.Duration < 1 || *in.Duration > 365 || *in.Duration < h.RemainedDays {
			return nil, fmt.Errorf("invalid habit duration %d", *in.Duration)
		}
		h.Duration = *in.Duration
	}
	if in.Comments != nil {
		h.Comments = *in.Comments
	}
	if in.ReminderTime != nil {
		if !validate.TimeOfDay(*in.ReminderTime) {
			return nil, fmt.Errorf("invalid reminder time %q", *in.ReminderTime)
		}
		timeChanged = *in.ReminderTime != h.ReminderTime
		h.ReminderTime = *in.ReminderTime
	}

	if err := db.DB.WithContext(ctx).Save(&h).Error; err != nil {
		return nil, err
	}

	// Extending a finished habit's duration puts it back in play; its pruned
	// reminder job comes back now, not at the nightly reconciliation.
	reactivated := wasComplete && h.Duration > h.RemainedDays
	if timeChanged || in.Name != nil || reactivated {
		if err := s.rec.HabitUpdated(ctx, h); err != nil {
			logger.Warn("failed to reschedule reminder for habit", "habit_id", h.ID, "error", err)
		}
	}
	return &h, nil
}

func (s *Service) Delete(ctx context.Context, habitID uint) error {
	var h db.Habit
	if err := db.DB.WithContext(ctx).First(&h, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHabitNotFound
		}
		return err
	}

	// Cancel the job while the reminder_jobs row still exists; the cascade
	// below would otherwise take the job id with it.
	if err := s.rec.HabitDeleted(ctx, habitID); err != nil {
		logger.Warn("failed to cancel reminder for deleted habit", "habit_id", habitID, "error", err)
	}

	return db.DB.WithContext(ctx).Select("CompletionCounters", "ReminderJobs").Delete(&h).Error
}

func (s *Service) ByID(ctx context.Context, habitID uint) (*db.Habit, error) {
	var h db.Habit
	if err := db.DB.WithContext(ctx).First(&h, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, err
	}
	return &h, nil
}

// Active lists the habits still being worked on, newest first.
func (s *Service) Active(ctx context.Context, botUserID int64) ([]db.Habit, error) {
	user, err := userByBotID(ctx, botUserID)
	if err != nil {
		return nil, err
	}
	var habits []db.Habit
	err = db.DB.WithContext(ctx).
		Where("user_id = ? AND duration > remained_days", user.ID).
		Order("id DESC").
		Find(&habits).Error
	return habits, err
}

// Completed lists the habits that have reached their planned duration.
func (s *Service) Completed(ctx context.Context, botUserID int64) ([]db.Habit, error) {
	user, err := userByBotID(ctx, botUserID)
	if err != nil {
		return nil, err
	}
	var habits []db.Habit
	err = db.DB.WithContext(ctx).
		Where("user_id = ? AND duration = remained_days", user.ID).
		Order("id DESC").
		Find(&habits).Error
	return habits, err
}

// CompletionSummary sums the habit's daily rows into lifetime tallies.
func (s *Service) CompletionSummary(ctx context.Context, habitID uint) (Summary, error) {
	if _, err := s.ByID(ctx, habitID); err != nil {
		return Summary{}, err
	}

	type row struct {
		Completed    int
		NotCompleted int
	}
	var totals row
	err := db.DB.WithContext(ctx).Model(&db.CompletionCounter{}).
		Select("COALESCE(SUM(completed_count), 0) AS completed, COALESCE(SUM(not_completed_count), 0) AS not_completed").
		Where("habit_id = ?", habitID).
		Scan(&totals).Error
	if err != nil {
		return Summary{}, err
	}
	return Summary{Completed: totals.Completed, NotCompleted: totals.NotCompleted}, nil
}

func userByBotID(ctx context.Context, botUserID int64) (*db.User, error) {
	var user db.User
	if err := db.DB.WithContext(ctx).Where("bot_user_id = ?", botUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
