package dialog

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
)

// Load returns the user's wizard position. No row or an empty row means no
// wizard is active.
func Load(ctx context.Context, botUserID int64) (string, Form, error) {
	var row db.DialogState
	err := db.DB.WithContext(ctx).Where("bot_user_id = ?", botUserID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StateNone, Form{}, nil
	}
	if err != nil {
		return StateNone, nil, err
	}

	form := Form{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &form); err != nil {
			// A corrupt payload only costs the user a restart of the wizard.
			return StateNone, Form{}, nil
		}
	}
	return row.State, form, nil
}

// Save upserts the user's wizard position so a half-finished form survives a
// restart.
func Save(ctx context.Context, botUserID int64, state string, form Form) error {
	payload, err := json.Marshal(form)
	if err != nil {
		return err
	}
	row := db.DialogState{
		BotUserID: botUserID,
		State:     state,
		Data:      datatypes.JSON(payload),
	}
	return db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "data", "updated_at"}),
	}).Create(&row).Error
}

// Clear drops the user's wizard position, ending any active wizard.
func Clear(ctx context.Context, botUserID int64) error {
	return db.DB.WithContext(ctx).
		Where("bot_user_id = ?", botUserID).
		Delete(&db.DialogState{}).Error
}
