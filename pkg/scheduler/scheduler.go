// Package scheduler owns the recurring reminder clock. It wraps gocron so the
// rest of the code deals only in opaque job id strings and "HH:MM" trigger
// times. The instance is created in main and passed to whoever needs it;
// nothing here is a package-level singleton.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/validate"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Task is a reminder callback. Tasks run on the scheduler's goroutines; any
// panic is recovered and logged so one broken reminder cannot take the
// firing loop down with it.
type Task func()

type JobInfo struct {
	ID      string
	Name    string
	NextRun time.Time
}

type Scheduler struct {
	inner gocron.Scheduler
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{inner: s}, nil
}

// Schedule registers a job firing every day at the given wall-clock time.
// The timeOfDay string must already have passed validate.TimeOfDay; malformed
// input is still rejected here rather than silently misparsed.
//
// Jobs may be scheduled before Start is called: they are queued and begin
// firing once the clock starts.
func (s *Scheduler) Schedule(timeOfDay, name string, task Task) (string, error) {
	def, err := dailyDefinition(timeOfDay)
	if err != nil {
		return "", err
	}
	job, err := s.inner.NewJob(def, gocron.NewTask(safeTask(name, task)), gocron.WithName(name))
	if err != nil {
		return "", fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	return job.ID().String(), nil
}

// Reschedule atomically replaces the trigger and task of an existing job.
// The job keeps its id; there is no window where it is absent from the table.
// Rescheduling an id this scheduler never issued fails with
// gocron.ErrJobNotFound.
func (s *Scheduler) Reschedule(jobID, timeOfDay, name string, task Task) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}
	// gocron's Update upserts: handed an unknown id it would silently create
	// a job under it. Reject unknown ids before reaching it.
	if _, ok := s.Find(jobID); !ok {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, gocron.ErrJobNotFound)
	}
	def, err := dailyDefinition(timeOfDay)
	if err != nil {
		return err
	}
	if _, err := s.inner.Update(id, def, gocron.NewTask(safeTask(name, task)), gocron.WithName(name)); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	return nil
}

// Cancel removes the job. Cancelling an unknown or already-removed job is a
// no-op, not an error.
func (s *Scheduler) Cancel(jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		// A handle we never issued; nothing to cancel.
		return nil
	}
	if err := s.inner.RemoveJob(id); err != nil {
		if errors.Is(err, gocron.ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return nil
}

func (s *Scheduler) Find(jobID string) (JobInfo, bool) {
	for _, job := range s.inner.Jobs() {
		if job.ID().String() == jobID {
			return jobInfo(job), true
		}
	}
	return JobInfo{}, false
}

func (s *Scheduler) Jobs() []JobInfo {
	jobs := s.inner.Jobs()
	infos := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, jobInfo(job))
	}
	return infos
}

func (s *Scheduler) Len() int {
	return len(s.inner.Jobs())
}

func (s *Scheduler) Start() {
	s.inner.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}

func jobInfo(job gocron.Job) JobInfo {
	info := JobInfo{ID: job.ID().String(), Name: job.Name()}
	// NextRun is undefined until the scheduler has started.
	if next, err := job.NextRun(); err == nil {
		info.NextRun = next
	}
	return info
}

func dailyDefinition(timeOfDay string) (gocron.JobDefinition, error) {
	hour, minute, ok := validate.SplitTimeOfDay(timeOfDay)
	if !ok || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid time of day %q", timeOfDay)
	}
	return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))), nil
}

func safeTask(name string, task Task) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("scheduled task panicked", "job", name, "panic", r)
			}
		}()
		task()
	}
}
