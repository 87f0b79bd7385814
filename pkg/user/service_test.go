package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/internal/testutil"
)

var validForm = RegisterInput{
	BotUserID: 500,
	ChatID:    500,
	Nickname:  "alice",
	FullName:  "Alice Smith",
	Age:       "30",
	Phone:     "89991234567",
	Email:     "alice@example.com",
	City:      "Riga",
	Password:  "Passw0rd!",
}

func TestRegisterAndAuthenticate(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	u, err := Register(ctx, validForm)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.PasswordHash == validForm.Password || u.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}

	got, err := Authenticate(ctx, "alice", "Passw0rd!")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated user id = %d, want %d", got.ID, u.ID)
	}

	if _, err := Authenticate(ctx, "alice", "WrongPass1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := Authenticate(ctx, "nobody", "Passw0rd!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown nickname: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegistrationDateFollowsLocalCalendarDay(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	// 23:30 local in UTC-7 is already 06:30 the next day in UTC; the stored
	// date must follow the local calendar, like habit dates do.
	old := nowFunc
	nowFunc = func() time.Time {
		return time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-7", -7*3600))
	}
	t.Cleanup(func() { nowFunc = old })

	u, err := Register(ctx, validForm)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !u.CreatedDate.Equal(want) {
		t.Errorf("created date = %v, want %v", u.CreatedDate, want)
	}
}

func TestRegisterRejectsInvalidForms(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	mutate := func(f func(*RegisterInput)) RegisterInput {
		in := validForm
		f(&in)
		return in
	}

	cases := map[string]RegisterInput{
		"nickname with digits": mutate(func(in *RegisterInput) { in.Nickname = "alice77" }),
		"empty nickname":       mutate(func(in *RegisterInput) { in.Nickname = "" }),
		"age out of range":     mutate(func(in *RegisterInput) { in.Age = "120" }),
		"phone not 8-prefixed": mutate(func(in *RegisterInput) { in.Phone = "79991234567" }),
		"malformed email":      mutate(func(in *RegisterInput) { in.Email = "not-an-email" }),
		"short password":       mutate(func(in *RegisterInput) { in.Password = "Ab1!" }),
		"password no special":  mutate(func(in *RegisterInput) { in.Password = "Passw0rdd" }),
		"password no digit":    mutate(func(in *RegisterInput) { in.Password = "Password!" }),
	}
	for name, in := range cases {
		if _, err := Register(ctx, in); err == nil {
			t.Errorf("%s: registration succeeded", name)
		}
	}

	var count int64
	if err := db.DB.Model(&db.User{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected forms created %d users", count)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	if _, err := Register(ctx, validForm); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	sameNickname := validForm
	sameNickname.BotUserID = 501
	if _, err := Register(ctx, sameNickname); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate nickname: got %v, want ErrAlreadyRegistered", err)
	}

	sameTelegramID := validForm
	sameTelegramID.Nickname = "bob"
	if _, err := Register(ctx, sameTelegramID); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate telegram id: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	if _, err := Register(ctx, validForm); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	city := "Tallinn"
	age := "31"
	u, err := UpdateProfile(ctx, 500, ProfileChanges{City: &city, Age: &age})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if u.City != "Tallinn" || u.Age != "31" {
		t.Errorf("profile = city %q age %q, want Tallinn/31", u.City, u.Age)
	}
	if u.Phone != validForm.Phone {
		t.Errorf("untouched phone changed to %q", u.Phone)
	}

	badAge := "0"
	if _, err := UpdateProfile(ctx, 500, ProfileChanges{Age: &badAge}); err == nil {
		t.Fatal("UpdateProfile accepted age 0")
	}

	if _, err := UpdateProfile(ctx, 999, ProfileChanges{City: &city}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestBindChat(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()

	if _, err := Register(ctx, validForm); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := BindChat(ctx, 500, 777); err != nil {
		t.Fatalf("BindChat returned error: %v", err)
	}
	u, err := ByBotUserID(ctx, 500)
	if err != nil {
		t.Fatalf("ByBotUserID returned error: %v", err)
	}
	if u.ChatID != 777 {
		t.Errorf("chat id = %d, want 777", u.ChatID)
	}

	if err := BindChat(ctx, 999, 777); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}
}
