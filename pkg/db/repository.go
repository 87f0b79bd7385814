// pkg/db/repository.go
package db

import (
	"strconv"

	"github.com/avasilyev/tg-habit-reminder/pkg/config"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	var err error
	dsn := "host=" + cfg.Host +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.DBName +
		" port=" + strconv.Itoa(cfg.Port) +
		" sslmode=" + cfg.SSLMode
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		// Unique-constraint violations must surface as gorm.ErrDuplicatedKey:
		// the completion tracker relies on that to detect an already-processed day.
		TranslateError: true,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	if err := Migrate(DB); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return err
	}
	return nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&Habit{},
		&CompletionCounter{},
		&ReminderJob{},
		&DialogState{},
		&MessageLog{},
	)
}
