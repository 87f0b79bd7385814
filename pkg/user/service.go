// Package user handles registration, login and profile updates. Users are
// keyed by their Telegram id (BotUserID); the nickname/password pair exists
// for the explicit login flow.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/validate"
)

var (
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrInvalidCredentials = errors.New("invalid nickname or password")
	ErrNotFound           = errors.New("user not found")
)

var (
	valid = newValidator()

	nowFunc = time.Now
)

// nowDate is the current calendar day under the process-local clock,
// normalized to UTC midnight. The same convention stamps habit dates, so
// a registration and a habit created in the same evening share a day.
func nowDate() time.Time {
	now := nowFunc()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func newValidator() *validator.Validate {
	v := validator.New()
	// The form rules live in pkg/validate; the tags just route to them.
	v.RegisterValidation("nickname", func(fl validator.FieldLevel) bool {
		return validate.Username(fl.Field().String())
	})
	v.RegisterValidation("age", func(fl validator.FieldLevel) bool {
		return validate.Age(fl.Field().String())
	})
	v.RegisterValidation("phone8", func(fl validator.FieldLevel) bool {
		return validate.Phone(fl.Field().String())
	})
	v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return validate.Password(fl.Field().String())
	})
	return v
}

type RegisterInput struct {
	BotUserID int64  `validate:"required"`
	ChatID    int64
	Nickname  string `validate:"required,nickname"`
	FullName  string `validate:"max=25"`
	Age       string `validate:"required,age"`
	Phone     string `validate:"omitempty,phone8"`
	Email     string `validate:"omitempty,email,max=25"`
	City      string `validate:"max=25"`
	Password  string `validate:"required,password"`
}

// Register creates the account and hashes the password. The nickname and the
// Telegram id are both unique; hitting either index reports
// ErrAlreadyRegistered.
func Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	if err := valid.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid registration form: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := db.User{
		Nickname:     in.Nickname,
		FullName:     in.FullName,
		Age:          in.Age,
		Phone:        in.Phone,
		Email:        in.Email,
		City:         in.City,
		PasswordHash: string(hash),
		BotUserID:    in.BotUserID,
		ChatID:       in.ChatID,
		CreatedDate:  nowDate(),
	}
	if err := db.DB.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return &u, nil
}

// Authenticate checks a nickname/password pair. An unknown nickname and a
// wrong password are indistinguishable to the caller.
func Authenticate(ctx context.Context, nickname, password string) (*db.User, error) {
	var u db.User
	if err := db.DB.WithContext(ctx).Where("nickname = ?", nickname).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// ProfileChanges carries the editable profile fields; nil means keep.
type ProfileChanges struct {
	FullName *string
	Age      *string
	Phone    *string
	Email    *string
	City     *string
}

func UpdateProfile(ctx context.Context, botUserID int64, ch ProfileChanges) (*db.User, error) {
	u, err := ByBotUserID(ctx, botUserID)
	if err != nil {
		return nil, err
	}

	if ch.FullName != nil {
		if len(*ch.FullName) > 25 {
			return nil, fmt.Errorf("full name too long")
		}
		u.FullName = *ch.FullName
	}
	if ch.Age != nil {
		if !validate.Age(*ch.Age) {
			return nil, fmt.Errorf("invalid age %q", *ch.Age)
		}
		u.Age = *ch.Age
	}
	if ch.Phone != nil {
		if *ch.Phone != "" && !validate.Phone(*ch.Phone) {
			return nil, fmt.Errorf("invalid phone %q", *ch.Phone)
		}
		u.Phone = *ch.Phone
	}
	if ch.Email != nil {
		if *ch.Email != "" && !validate.Email(*ch.Email) {
			return nil, fmt.Errorf("invalid email %q", *ch.Email)
		}
		u.Email = *ch.Email
	}
	if ch.City != nil {
		if len(*ch.City) > 25 {
			return nil, fmt.Errorf("city name too long")
		}
		u.City = *ch.City
	}

	if err := db.DB.WithContext(ctx).Save(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func ByBotUserID(ctx context.Context, botUserID int64) (*db.User, error) {
	var u db.User
	if err := db.DB.WithContext(ctx).Where("bot_user_id = ?", botUserID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// BindChat records the chat a user talks to the bot from; reminders go there.
func BindChat(ctx context.Context, botUserID, chatID int64) error {
	res := db.DB.WithContext(ctx).Model(&db.User{}).
		Where("bot_user_id = ?", botUserID).
		Update("chat_id", chatID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
