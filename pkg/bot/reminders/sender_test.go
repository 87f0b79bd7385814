package reminders

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	telegram "github.com/go-telegram/bot"

	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/internal/testutil"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
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
		response: `{"ok":true,"result":{"message_id":7,"chat":{"id":777}}}`,
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

func (m *mockClient) requestPaths() []string {
	paths := make([]string, 0, len(m.requests))
	for _, req := range m.requests {
		paths = append(paths, req.path)
	}
	return paths
}

func (m *mockClient) lastMessageText(t *testing.T) string {
	t.Helper()
	if len(m.requests) == 0 {
		t.Fatalf("expected at least one recorded request")
	}
	req := m.requests[len(m.requests)-1]

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
		if part.FormName() == "text" {
			data, err := io.ReadAll(part)
			if err != nil {
				t.Fatalf("failed to read text part: %v", err)
			}
			return string(data)
		}
	}
	t.Fatalf("text field not found in request")
	return ""
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

func seedUser(t *testing.T, botUserID, chatID int64) db.User {
	t.Helper()
	u := db.User{
		Nickname:     fmt.Sprintf("user%d", botUserID),
		Age:          "30",
		PasswordHash: "x",
		BotUserID:    botUserID,
		ChatID:       chatID,
	}
	if err := db.DB.Create(&u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

func TestRemindSendsAndRecords(t *testing.T) {
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)

	client := newMockClient()
	s := NewSender(newTestTelegramBot(t, client))
	seedUser(t, 700, 777)

	s.Remind(700, 42, "morning run")

	if len(client.requests) != 1 || !strings.HasSuffix(client.requests[0].path, "/sendMessage") {
		t.Fatalf("requests = %v, want one sendMessage", client.requestPaths())
	}
	text := client.lastMessageText(t)
	if !strings.Contains(text, `"morning run"`) {
		t.Errorf("reminder text %q does not mention the habit", text)
	}
	line := strings.SplitN(text, "\n", 2)[0]
	found := false
	for _, w := range wisdomLines {
		if line == w {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("reminder does not open with a wisdom line: %q", line)
	}

	var logs []db.MessageLog
	if err := db.DB.Find(&logs).Error; err != nil {
		t.Fatalf("failed to load message log: %v", err)
	}
	if len(logs) != 1 || logs[0].ChatID != 777 || logs[0].MessageID != 7 {
		t.Fatalf("message log = %+v, want one row for chat 777 message 7", logs)
	}
}

func TestRemindUnknownUserSendsNothing(t *testing.T) {
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)

	client := newMockClient()
	s := NewSender(newTestTelegramBot(t, client))

	s.Remind(999, 1, "ghost habit")

	if len(client.requests) != 0 {
		t.Fatalf("requests = %v, want none", client.requestPaths())
	}
}

func TestCleanupChatDeletesLoggedMessages(t *testing.T) {
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)

	for i := 1; i <= 3; i++ {
		row := db.MessageLog{ChatID: 777, MessageID: i, BotUserID: 700, Timestamp: time.Now().UTC()}
		if err := db.DB.Create(&row).Error; err != nil {
			t.Fatalf("failed to seed message log: %v", err)
		}
	}
	other := db.MessageLog{ChatID: 888, MessageID: 9, BotUserID: 800, Timestamp: time.Now().UTC()}
	if err := db.DB.Create(&other).Error; err != nil {
		t.Fatalf("failed to seed message log: %v", err)
	}

	client := newMockClient()
	client.response = `{"ok":true,"result":true}`
	b := newTestTelegramBot(t, client)

	if err := CleanupChat(context.Background(), b, 777); err != nil {
		t.Fatalf("CleanupChat returned error: %v", err)
	}

	deletes := 0
	for _, path := range client.requestPaths() {
		if strings.HasSuffix(path, "/deleteMessage") {
			deletes++
		}
	}
	if deletes != 3 {
		t.Errorf("deleteMessage requests = %d, want 3", deletes)
	}

	var rest []db.MessageLog
	if err := db.DB.Find(&rest).Error; err != nil {
		t.Fatalf("failed to reload message log: %v", err)
	}
	if len(rest) != 1 || rest[0].ChatID != 888 {
		t.Fatalf("surviving rows = %+v, want only chat 888", rest)
	}
}
