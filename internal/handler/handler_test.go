package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agrichat/internal/app/chat"
	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
	"agrichat/internal/configs"
	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/resp"
)

const testJWTSecret = "handler-test-secret"

var (
	testFarmer = user.User{ID: "2f5d9f9c-0000-4000-8000-000000000001", Username: "alice_farm", DisplayName: "Alice", Role: user.RoleFarmer}
	testBuyer  = user.User{ID: "9a1b2c3d-0000-4000-8000-000000000002", Username: "bob_buys", DisplayName: "Bob", Role: user.RoleBuyer}
)

// mockUserStore implements UserStore via function fields.
type mockUserStore struct {
	createUser           func(ctx context.Context, p store.NewUserParams) (user.User, error)
	getUserByID          func(ctx context.Context, id string) (user.User, error)
	getAccountByUsername func(ctx context.Context, username string) (store.Account, error)
	getAccountByID       func(ctx context.Context, id string) (store.Account, error)
	updateUserPassword   func(ctx context.Context, id, passwordHash string) error
	updateLastLogin      func(ctx context.Context, id string) error
}

func (m *mockUserStore) CreateUser(ctx context.Context, p store.NewUserParams) (user.User, error) {
	if m.createUser == nil {
		panic("unexpected call: CreateUser")
	}
	return m.createUser(ctx, p)
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if m.getUserByID == nil {
		panic("unexpected call: GetUserByID")
	}
	return m.getUserByID(ctx, id)
}

func (m *mockUserStore) GetAccountByUsername(ctx context.Context, username string) (store.Account, error) {
	if m.getAccountByUsername == nil {
		panic("unexpected call: GetAccountByUsername")
	}
	return m.getAccountByUsername(ctx, username)
}

func (m *mockUserStore) GetAccountByID(ctx context.Context, id string) (store.Account, error) {
	if m.getAccountByID == nil {
		panic("unexpected call: GetAccountByID")
	}
	return m.getAccountByID(ctx, id)
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	if m.updateUserPassword == nil {
		panic("unexpected call: UpdateUserPassword")
	}
	return m.updateUserPassword(ctx, id, passwordHash)
}

func (m *mockUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLogin != nil {
		return m.updateLastLogin(ctx, id)
	}
	return nil
}

// mockConversationStore implements ConversationStore via function fields.
type mockConversationStore struct {
	listConversations func(ctx context.Context, userID string) ([]store.ConversationSummary, error)
	listMessages      func(ctx context.Context, conversationID string) ([]store.Message, error)
	isParticipant     func(ctx context.Context, conversationID, userID string) (bool, error)
	appendMessage     func(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error)
}

func (m *mockConversationStore) ListConversations(ctx context.Context, userID string) ([]store.ConversationSummary, error) {
	if m.listConversations == nil {
		panic("unexpected call: ListConversations")
	}
	return m.listConversations(ctx, userID)
}

func (m *mockConversationStore) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	if m.listMessages == nil {
		panic("unexpected call: ListMessages")
	}
	return m.listMessages(ctx, conversationID)
}

func (m *mockConversationStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if m.isParticipant == nil {
		panic("unexpected call: IsParticipant")
	}
	return m.isParticipant(ctx, conversationID, userID)
}

func (m *mockConversationStore) AppendMessage(ctx context.Context, conversationID, senderID, content string, attachments []store.Attachment) (store.Message, error) {
	if m.appendMessage == nil {
		panic("unexpected call: AppendMessage")
	}
	return m.appendMessage(ctx, conversationID, senderID, content, attachments)
}

// mockStorageService implements storage.StorageService via function fields.
type mockStorageService struct {
	presignUpload   func(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)
	presignDownload func(ctx context.Context, key string, duration time.Duration) (string, error)
}

func (m *mockStorageService) PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error) {
	if m.presignUpload == nil {
		panic("unexpected call: PresignUpload")
	}
	return m.presignUpload(ctx, key, mimeType, fileSize, duration)
}

func (m *mockStorageService) PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error) {
	if m.presignDownload == nil {
		panic("unexpected call: PresignDownload")
	}
	return m.presignDownload(ctx, key, duration)
}

func (m *mockStorageService) Delete(ctx context.Context, key string) error {
	return nil
}

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment: "development",
		Port:        8080,
		JWTSecret:   testJWTSecret,
	}
}

func newTestDeps() (*AppDeps, *mockUserStore, *mockConversationStore, *mockStorageService) {
	users := &mockUserStore{}
	conversations := &mockConversationStore{}
	storageSvc := &mockStorageService{}

	deps := &AppDeps{
		Hub:            chat.NewHub(),
		Config:         testConfig(),
		Users:          users,
		Conversations:  conversations,
		StorageService: storageSvc,
	}
	return deps, users, conversations, storageSvc
}

func tokenFor(t *testing.T, u user.User) string {
	t.Helper()

	payload := &jwt.Payload{ID: u.ID, Username: u.Username, Role: u.Role}
	token, err := jwt.GenerateToken(payload, testJWTSecret, jwt.UserIdentityExpiration)
	require.NoError(t, err)
	return token
}

// doJSON runs a request through the full router, optionally authenticated.
func doJSON(t *testing.T, deps *AppDeps, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	Router(deps).ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) resp.JSONResponse {
	t.Helper()

	var body resp.JSONResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
