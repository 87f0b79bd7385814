package db

import (
	"context"
	"time"

	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
)

const (
	MessageCleanupInterval = time.Hour
	MessageRetention       = 48 * time.Hour
)

// CleanupOldMessages drops message-log rows past the retention window. The
// log only exists so chats can be tidied up; stale rows point at messages
// Telegram no longer lets the bot delete anyway.
func CleanupOldMessages(now time.Time, retention time.Duration) (int64, error) {
	if DB == nil {
		return 0, nil
	}
	if retention <= 0 {
		retention = MessageRetention
	}

	res := DB.Where("timestamp <= ?", now.Add(-retention)).Delete(&MessageLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func StartMessageCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = MessageCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := CleanupOldMessages(time.Now().UTC(), MessageRetention); err != nil {
				logger.Error("failed to cleanup message log", "error", err)
			}
		}
	}
}
