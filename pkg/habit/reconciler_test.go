package habit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/internal/testutil"
	"github.com/avasilyev/tg-habit-reminder/pkg/scheduler"
)

type fakeJob struct {
	timeOfDay string
	name      string
	task      scheduler.Task
}

type fakeScheduler struct {
	seq          int
	jobs         map[string]fakeJob
	failSchedule bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]fakeJob)}
}

func (f *fakeScheduler) Schedule(timeOfDay, name string, task scheduler.Task) (string, error) {
	if f.failSchedule {
		return "", errors.New("scheduler unavailable")
	}
	f.seq++
	id := fmt.Sprintf("job-%d", f.seq)
	f.jobs[id] = fakeJob{timeOfDay: timeOfDay, name: name, task: task}
	return id, nil
}

func (f *fakeScheduler) Reschedule(jobID, timeOfDay, name string, task scheduler.Task) error {
	if _, ok := f.jobs[jobID]; !ok {
		return errors.New("job not found")
	}
	f.jobs[jobID] = fakeJob{timeOfDay: timeOfDay, name: name, task: task}
	return nil
}

func (f *fakeScheduler) Cancel(jobID string) error {
	delete(f.jobs, jobID)
	return nil
}

func jobRows(t *testing.T, habitID uint) []db.ReminderJob {
	t.Helper()
	var rows []db.ReminderJob
	q := db.DB
	if habitID != 0 {
		q = q.Where("habit_id = ?", habitID)
	}
	if err := q.Find(&rows).Error; err != nil {
		t.Fatalf("failed to load reminder job rows: %v", err)
	}
	return rows
}

func createHabitFor(t *testing.T, user db.User, name, reminderTime string, duration int) db.Habit {
	t.Helper()
	h := db.Habit{UserID: user.ID, Name: name, Duration: duration, ReminderTime: reminderTime, CreatedDate: Today()}
	if err := db.DB.Create(&h).Error; err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return h
}

func noopRemind(int64, uint, string) {}

func TestReconcileConvergence(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	user1, h1 := createUserWithHabit(t, 200, 10)
	h2 := createHabitFor(t, user1, "water", "12:00", 21)
	_, h3 := createUserWithHabit(t, 201, 5)

	// A finished habit must not get a job.
	completedUser, completedHabit := createUserWithHabit(t, 202, 3)
	_ = completedUser
	if err := db.DB.Model(&db.Habit{}).Where("id = ?", completedHabit.ID).
		Update("remained_days", 3).Error; err != nil {
		t.Fatalf("failed to complete habit: %v", err)
	}

	sched := newFakeScheduler()
	rec := NewReconciler(sched, noopRemind)

	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if len(sched.jobs) != 3 {
		t.Fatalf("expected 3 live jobs, got %d", len(sched.jobs))
	}
	for _, h := range []db.Habit{h1, h2, h3} {
		rows := jobRows(t, h.ID)
		if len(rows) != 1 {
			t.Errorf("habit %d has %d job rows, want 1", h.ID, len(rows))
			continue
		}
		if _, ok := sched.jobs[rows[0].JobID]; !ok {
			t.Errorf("habit %d row points at job %q the scheduler does not know", h.ID, rows[0].JobID)
		}
	}
	if rows := jobRows(t, completedHabit.ID); len(rows) != 0 {
		t.Errorf("completed habit has %d job rows, want 0", len(rows))
	}

	// A second pass must not duplicate anything.
	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if len(sched.jobs) != 3 {
		t.Fatalf("second pass changed live jobs to %d, want 3", len(sched.jobs))
	}
	if rows := jobRows(t, 0); len(rows) != 3 {
		t.Fatalf("second pass changed job rows to %d, want 3", len(rows))
	}
}

func TestReconcilePartialFailureIsolation(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	createUserWithHabit(t, 210, 10)
	createUserWithHabit(t, 211, 10)

	sched := newFakeScheduler()
	sched.failSchedule = true
	rec := NewReconciler(sched, noopRemind)

	// Scheduling failures are logged and skipped, never fatal to the scan.
	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile with failing scheduler returned error: %v", err)
	}
	if rows := jobRows(t, 0); len(rows) != 0 {
		t.Fatalf("expected no job rows after failed scheduling, got %d", len(rows))
	}

	// The next pass self-heals.
	sched.failSchedule = false
	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("healing Reconcile returned error: %v", err)
	}
	if rows := jobRows(t, 0); len(rows) != 2 {
		t.Fatalf("expected 2 job rows after recovery, got %d", len(rows))
	}
	if len(sched.jobs) != 2 {
		t.Fatalf("expected 2 live jobs after recovery, got %d", len(sched.jobs))
	}
}

func TestRebuildAfterRestart(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	createUserWithHabit(t, 220, 10)
	_, second := createUserWithHabit(t, 221, 21)
	_ = second

	before := newFakeScheduler()
	if err := NewReconciler(before, noopRemind).Reconcile(ctx); err != nil {
		t.Fatalf("initial Reconcile returned error: %v", err)
	}
	oldRows := jobRows(t, 0)
	if len(oldRows) != 2 {
		t.Fatalf("expected 2 job rows before restart, got %d", len(oldRows))
	}

	// Simulated restart: a fresh scheduler knows nothing, the rows remain.
	after := newFakeScheduler()
	if err := NewReconciler(after, noopRemind).Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	newRows := jobRows(t, 0)
	if len(newRows) != 2 {
		t.Fatalf("expected 2 job rows after rebuild, got %d", len(newRows))
	}
	if len(after.jobs) != 2 {
		t.Fatalf("expected 2 live jobs after rebuild, got %d", len(after.jobs))
	}
	for _, row := range newRows {
		if _, ok := after.jobs[row.JobID]; !ok {
			t.Errorf("row job id %q not known to the rebuilt scheduler", row.JobID)
		}
	}
}

func TestHabitLifecycleHooks(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	user, h := createUserWithHabit(t, 230, 10)
	_ = user

	sched := newFakeScheduler()
	rec := NewReconciler(sched, noopRemind)

	if err := rec.HabitCreated(ctx, h); err != nil {
		t.Fatalf("HabitCreated returned error: %v", err)
	}
	rows := jobRows(t, h.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 job row after create, got %d", len(rows))
	}
	jobID := rows[0].JobID
	if sched.jobs[jobID].timeOfDay != "09:00" {
		t.Fatalf("job registered at %q, want 09:00", sched.jobs[jobID].timeOfDay)
	}

	// Creating again is idempotent.
	if err := rec.HabitCreated(ctx, h); err != nil {
		t.Fatalf("second HabitCreated returned error: %v", err)
	}
	if len(jobRows(t, h.ID)) != 1 || len(sched.jobs) != 1 {
		t.Fatal("HabitCreated duplicated the job")
	}

	h.ReminderTime = "21:15"
	if err := rec.HabitUpdated(ctx, h); err != nil {
		t.Fatalf("HabitUpdated returned error: %v", err)
	}
	if got := sched.jobs[jobID].timeOfDay; got != "21:15" {
		t.Fatalf("job fires at %q after update, want 21:15", got)
	}
	if len(jobRows(t, h.ID)) != 1 {
		t.Fatal("HabitUpdated changed the number of job rows")
	}

	if err := rec.HabitDeleted(ctx, h.ID); err != nil {
		t.Fatalf("HabitDeleted returned error: %v", err)
	}
	if len(jobRows(t, h.ID)) != 0 {
		t.Fatal("job row survived HabitDeleted")
	}
	if len(sched.jobs) != 0 {
		t.Fatal("live job survived HabitDeleted")
	}

	// Deleting again is a no-op.
	if err := rec.HabitDeleted(ctx, h.ID); err != nil {
		t.Fatalf("second HabitDeleted returned error: %v", err)
	}
}

func TestHabitUpdatedReplacesLostJob(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	_, h := createUserWithHabit(t, 240, 10)

	sched := newFakeScheduler()
	rec := NewReconciler(sched, noopRemind)

	// A row pointing at a job the scheduler lost (e.g. recorded before a
	// crash) is replaced by a fresh registration.
	stale := db.ReminderJob{JobID: "gone", UserID: h.UserID, HabitID: h.ID}
	if err := db.DB.Create(&stale).Error; err != nil {
		t.Fatalf("failed to create stale row: %v", err)
	}

	h.ReminderTime = "08:45"
	if err := rec.HabitUpdated(ctx, h); err != nil {
		t.Fatalf("HabitUpdated returned error: %v", err)
	}

	rows := jobRows(t, h.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 job row, got %d", len(rows))
	}
	if rows[0].JobID == "gone" {
		t.Fatal("stale job row was not replaced")
	}
	if job, ok := sched.jobs[rows[0].JobID]; !ok || job.timeOfDay != "08:45" {
		t.Fatalf("replacement job = %+v, ok=%v; want live job at 08:45", job, ok)
	}
}

func TestReconcilePrunesCompletedHabits(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	_, h := createUserWithHabit(t, 250, 2)

	sched := newFakeScheduler()
	rec := NewReconciler(sched, noopRemind)
	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(sched.jobs) != 1 {
		t.Fatalf("expected 1 live job, got %d", len(sched.jobs))
	}

	// Both days processed: the habit completes.
	setNow(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if ok, err := MarkCompleted(ctx, h.ID); err != nil || !ok {
		t.Fatalf("day 1 mark = %v, %v", ok, err)
	}
	setNow(t, time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
	if ok, err := MarkCompleted(ctx, h.ID); err != nil || !ok {
		t.Fatalf("day 2 mark = %v, %v", ok, err)
	}

	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("post-completion Reconcile returned error: %v", err)
	}
	if len(sched.jobs) != 0 {
		t.Fatalf("completed habit still has %d live jobs", len(sched.jobs))
	}
	if rows := jobRows(t, h.ID); len(rows) != 0 {
		t.Fatalf("completed habit still has %d job rows", len(rows))
	}
}
