// pkg/db/models.go
package db

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Nickname     string `gorm:"size:25;not null;uniqueIndex"`
	FullName     string `gorm:"size:25"`
	Age          string `gorm:"size:3;not null"`
	Phone        string `gorm:"size:12"`
	Email        string `gorm:"size:25"`
	City         string `gorm:"size:25"`
	PasswordHash string `gorm:"size:128;not null"` // bcrypt, written once at registration
	BotUserID    int64  `gorm:"uniqueIndex"`       // Telegram user id
	ChatID       int64
	CreatedDate  time.Time `gorm:"type:date"`

	Habits []Habit `gorm:"constraint:OnDelete:CASCADE"`
}

type Habit struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       uint      `gorm:"index;not null"`
	Name         string    `gorm:"size:50;not null"`
	Duration     int       `gorm:"not null"` // planned days, positive
	Comments     string    `gorm:"size:100"`
	ReminderTime string    `gorm:"size:5;not null"` // "HH:MM"
	CreatedDate  time.Time `gorm:"type:date"`
	RemainedDays int       `gorm:"not null;default:0"` // processed days, one per calendar day

	CompletionCounters []CompletionCounter `gorm:"constraint:OnDelete:CASCADE"`
	ReminderJobs       []ReminderJob       `gorm:"constraint:OnDelete:CASCADE"`
}

// CompletionCounter holds one row per habit per processed calendar day. The
// unique (habit_id, created_date) index is the idempotency gate: the row's
// existence means today was already processed.
type CompletionCounter struct {
	ID                uint      `gorm:"primaryKey"`
	UserID            uint      `gorm:"index;not null"`
	HabitID           uint      `gorm:"not null;uniqueIndex:idx_habit_day"`
	CompletedCount    int       `gorm:"not null;default:0"`
	NotCompletedCount int       `gorm:"not null;default:0"`
	CreatedDate       time.Time `gorm:"type:date;not null;uniqueIndex:idx_habit_day"`
}

// ReminderJob correlates a scheduler job id with a habit. A row exists iff a
// recurring wake-up is registered for the habit. The scheduler's in-memory
// table is lost on restart; these rows are the ground truth it is rebuilt from.
type ReminderJob struct {
	ID      uint   `gorm:"primaryKey"`
	JobID   string `gorm:"size:36;not null"`
	UserID  uint   `gorm:"index;not null"`
	HabitID uint   `gorm:"index;not null"`
}

// DialogState persists a user's position in a multi-step wizard so a
// half-finished form survives a restart.
type DialogState struct {
	ID        uint   `gorm:"primaryKey"`
	BotUserID int64  `gorm:"uniqueIndex"`
	State     string `gorm:"not null;default:''"`
	Data      datatypes.JSON
	UpdatedAt time.Time
}

type MessageLog struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    int64     `gorm:"index;not null"`
	MessageID int       `gorm:"not null"`
	BotUserID int64     `gorm:"not null"`
	Timestamp time.Time `gorm:"not null"`
}
