// pkg/habit/reconciler.go
//
// The reconciler keeps the scheduler's in-memory job table consistent with
// the habits stored in the database. Persisted reminder_jobs rows are the
// ground truth; the scheduler is a cache rebuilt from them on startup.
package habit

import (
	"context"
	"errors"
	"fmt"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/scheduler"
	"gorm.io/gorm"
)

// JobScheduler is the slice of the reminder scheduler the reconciler needs.
// *scheduler.Scheduler satisfies it.
type JobScheduler interface {
	Schedule(timeOfDay, name string, task scheduler.Task) (string, error)
	Reschedule(jobID, timeOfDay, name string, task scheduler.Task) error
	Cancel(jobID string) error
}

// ReminderFunc delivers one reminder. The reconciler wraps it into the task
// body registered with the scheduler; delivery failures are the func's
// problem and must never propagate back into the firing loop.
type ReminderFunc func(botUserID int64, habitID uint, habitName string)

type Reconciler struct {
	sched  JobScheduler
	remind ReminderFunc
}

func NewReconciler(sched JobScheduler, remind ReminderFunc) *Reconciler {
	return &Reconciler{sched: sched, remind: remind}
}

// Rebuild is the cold-start entry point. The in-memory scheduler starts
// empty, so every persisted job row refers to a job that no longer exists;
// the rows are purged and the full scan re-registers everything. After this
// returns, rows and live jobs match one to one.
func (r *Reconciler) Rebuild(ctx context.Context) error {
	if err := db.DB.WithContext(ctx).Where("1 = 1").Delete(&db.ReminderJob{}).Error; err != nil {
		return fmt.Errorf("failed to purge stale reminder jobs: %w", err)
	}
	return r.Reconcile(ctx)
}

// Reconcile scans every user's active habits and registers a reminder job
// for each one that has none. Idempotent: a habit with a persisted job row
// is skipped. Individual failures are logged and do not abort the scan.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	logger.Info("starting reminder reconciliation")

	var users []db.User
	if err := db.DB.WithContext(ctx).Select("id", "bot_user_id").Find(&users).Error; err != nil {
		return err
	}

	registered := 0
	for _, user := range users {
		var habits []db.Habit
		err := db.DB.WithContext(ctx).
			Where("user_id = ? AND duration > remained_days", user.ID).
			Find(&habits).Error
		if err != nil {
			logger.Warn("failed to list active habits", "user_id", user.ID, "error", err)
			continue
		}

		for _, h := range habits {
			created, err := r.ensureJob(ctx, user.BotUserID, h)
			if err != nil {
				logger.Warn("failed to reconcile habit reminder",
					"habit_id", h.ID, "user_id", h.UserID, "error", err)
				continue
			}
			if created {
				registered++
			}
		}
	}

	pruned := r.pruneCompleted(ctx)

	logger.Info("reminder reconciliation finished", "jobs_registered", registered, "jobs_pruned", pruned)
	return nil
}

// pruneCompleted drops jobs for habits that reached their duration since the
// last pass. A habit completes the moment its last day is processed; its job
// may fire once more before this runs, which is harmless.
func (r *Reconciler) pruneCompleted(ctx context.Context) int {
	var rows []db.ReminderJob
	completed := db.DB.Model(&db.Habit{}).Select("id").Where("duration <= remained_days")
	if err := db.DB.WithContext(ctx).Where("habit_id IN (?)", completed).Find(&rows).Error; err != nil {
		logger.Warn("failed to list jobs of completed habits", "error", err)
		return 0
	}

	pruned := 0
	for _, row := range rows {
		if err := r.sched.Cancel(row.JobID); err != nil {
			logger.Warn("failed to cancel job of completed habit",
				"habit_id", row.HabitID, "job_id", row.JobID, "error", err)
			continue
		}
		if err := db.DB.WithContext(ctx).Delete(&row).Error; err != nil {
			logger.Warn("failed to delete job row of completed habit",
				"habit_id", row.HabitID, "error", err)
			continue
		}
		pruned++
	}
	return pruned
}

// HabitCreated registers a reminder job for a freshly created habit.
func (r *Reconciler) HabitCreated(ctx context.Context, h db.Habit) error {
	botUserID, err := r.botUserID(ctx, h.UserID)
	if err != nil {
		return err
	}
	_, err = r.ensureJob(ctx, botUserID, h)
	return err
}

// HabitUpdated moves the habit's job to its new reminder time. A habit that
// somehow lost its job gets a fresh one.
func (r *Reconciler) HabitUpdated(ctx context.Context, h db.Habit) error {
	botUserID, err := r.botUserID(ctx, h.UserID)
	if err != nil {
		return err
	}

	var row db.ReminderJob
	err = db.DB.WithContext(ctx).Where("habit_id = ?", h.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.register(ctx, botUserID, h)
	}
	if err != nil {
		return err
	}

	if err := r.sched.Reschedule(row.JobID, h.ReminderTime, jobName(h), r.task(botUserID, h)); err != nil {
		// The in-memory job is gone (or was never there); replace it wholesale.
		logger.Warn("reschedule failed, replacing reminder job",
			"habit_id", h.ID, "job_id", row.JobID, "error", err)
		_ = r.sched.Cancel(row.JobID)
		if err := db.DB.WithContext(ctx).Delete(&row).Error; err != nil {
			return err
		}
		return r.register(ctx, botUserID, h)
	}
	return nil
}

// HabitDeleted cancels the habit's job and removes its row. Must run before
// the habit row itself is deleted, while the job id can still be read.
func (r *Reconciler) HabitDeleted(ctx context.Context, habitID uint) error {
	var row db.ReminderJob
	err := db.DB.WithContext(ctx).Where("habit_id = ?", habitID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.sched.Cancel(row.JobID); err != nil {
		return &SchedulingError{Op: "cancel", HabitID: habitID, UserID: row.UserID, Err: err}
	}
	return db.DB.WithContext(ctx).Delete(&row).Error
}

// ensureJob registers a job unless the habit already has one. Returns whether
// a new job was created.
func (r *Reconciler) ensureJob(ctx context.Context, botUserID int64, h db.Habit) (bool, error) {
	var count int64
	err := db.DB.WithContext(ctx).Model(&db.ReminderJob{}).
		Where("habit_id = ?", h.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := r.register(ctx, botUserID, h); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reconciler) register(ctx context.Context, botUserID int64, h db.Habit) error {
	jobID, err := r.sched.Schedule(h.ReminderTime, jobName(h), r.task(botUserID, h))
	if err != nil {
		return &SchedulingError{Op: "schedule", HabitID: h.ID, UserID: h.UserID, Err: err}
	}

	row := db.ReminderJob{JobID: jobID, UserID: h.UserID, HabitID: h.ID}
	if err := db.DB.WithContext(ctx).Create(&row).Error; err != nil {
		// Don't leave a live job the table knows nothing about.
		_ = r.sched.Cancel(jobID)
		return err
	}
	return nil
}

func (r *Reconciler) botUserID(ctx context.Context, userID uint) (int64, error) {
	var user db.User
	if err := db.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.BotUserID, nil
}

func (r *Reconciler) task(botUserID int64, h db.Habit) scheduler.Task {
	habitID, habitName := h.ID, h.Name
	return func() {
		r.remind(botUserID, habitID, habitName)
	}
}

func jobName(h db.Habit) string {
	return fmt.Sprintf("habit-%d-reminder", h.ID)
}
