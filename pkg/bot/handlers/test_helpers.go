package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	telegram "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/habit"
	"github.com/avasilyev/tg-habit-reminder/pkg/internal/testutil"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/scheduler"
	"golang.org/x/crypto/bcrypt"
)

type recordedRequest struct {
	path        string
	method      string
	contentType string
	body        []byte
}

type mockClient struct {
	requests []recordedRequest
	response string
}

func newMockClient() *mockClient {
	return &mockClient{
		response: `{"ok":true,"result":{}}`,
	}
}

func (m *mockClient) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if err := req.Body.Close(); err != nil {
		return nil, fmt.Errorf("failed to close request body: %w", err)
	}
	m.requests = append(m.requests, recordedRequest{
		path:        req.URL.Path,
		method:      req.Method,
		contentType: req.Header.Get("Content-Type"),
		body:        body,
	})

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(m.response)),
		Header:     make(http.Header),
	}
	return resp, nil
}

func (m *mockClient) formField(t *testing.T, req recordedRequest, fieldName string) (string, bool) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(req.contentType)
	if err != nil {
		t.Fatalf("failed to parse media type: %v", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		t.Fatalf("unexpected media type: %s", mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(req.body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read multipart part: %v", err)
		}
		if part.FormName() == fieldName {
			data, err := io.ReadAll(part)
			if err != nil {
				t.Fatalf("failed to read multipart field: %v", err)
			}
			return string(data), true
		}
	}
	return "", false
}

// messageTexts returns the "text" field of every sendMessage request.
func (m *mockClient) messageTexts(t *testing.T) []string {
	t.Helper()
	var texts []string
	for _, req := range m.requests {
		if !strings.HasSuffix(req.path, "/sendMessage") {
			continue
		}
		if text, ok := m.formField(t, req, "text"); ok {
			texts = append(texts, text)
		}
	}
	return texts
}

func (m *mockClient) lastMessageText(t *testing.T) string {
	t.Helper()
	texts := m.messageTexts(t)
	if len(texts) == 0 {
		t.Fatalf("expected at least one sent message")
	}
	return texts[len(texts)-1]
}

// lastCallbackAnswer returns the "text" field of the last answerCallbackQuery.
func (m *mockClient) lastCallbackAnswer(t *testing.T) (string, bool) {
	t.Helper()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if strings.HasSuffix(m.requests[i].path, "/answerCallbackQuery") {
			text, _ := m.formField(t, m.requests[i], "text")
			return text, true
		}
	}
	return "", false
}

func newTestTelegramBot(t *testing.T, client *mockClient) *telegram.Bot {
	t.Helper()
	b, err := telegram.New("test-token",
		telegram.WithSkipGetMe(),
		telegram.WithHTTPClient(time.Second, client),
	)
	if err != nil {
		t.Fatalf("failed to create test bot: %v", err)
	}
	return b
}

func newTestUpdate(text string, userID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			From: &models.User{
				ID: userID,
			},
			Chat: models.Chat{
				ID: userID,
			},
			Text: text,
		},
	}
}

func newTestCallbackUpdate(data string, userID, chatID int64, messageID int) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "callback-1",
			From: models.User{ID: userID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type: models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{
					ID: messageID,
					Chat: models.Chat{
						ID:   chatID,
						Type: models.ChatTypePrivate,
					},
				},
			},
		},
	}
}

// stubScheduler satisfies the reconciler without running real jobs.
type stubScheduler struct {
	seq int
}

func (s *stubScheduler) Schedule(timeOfDay, name string, task scheduler.Task) (string, error) {
	s.seq++
	return fmt.Sprintf("stub-job-%d", s.seq), nil
}

func (s *stubScheduler) Reschedule(jobID, timeOfDay, name string, task scheduler.Task) error {
	return nil
}

func (s *stubScheduler) Cancel(jobID string) error {
	return nil
}

// setupHandlers wires a fresh database and service layer for one test.
func setupHandlers(t *testing.T) {
	t.Helper()
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)
	rec := habit.NewReconciler(&stubScheduler{}, func(int64, uint, string) {})
	Setup(Deps{Habits: habit.NewService(rec)})
}

func seedRegisteredUser(t *testing.T, botUserID int64, nickname string) db.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := db.User{
		Nickname:     nickname,
		Age:          "30",
		PasswordHash: string(hash),
		BotUserID:    botUserID,
		ChatID:       botUserID,
	}
	if err := db.DB.Create(&u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

func seedHabit(t *testing.T, u db.User, name string) db.Habit {
	t.Helper()
	h := db.Habit{
		UserID:       u.ID,
		Name:         name,
		Duration:     10,
		ReminderTime: "09:00",
		CreatedDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.DB.Create(&h).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	return h
}
