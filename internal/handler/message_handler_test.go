package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/chatroom/internal/chat"
	"github.com/hitoshi/chatroom/internal/middleware"
	"github.com/hitoshi/chatroom/internal/model"
)

// --- モック定義 ---

type mockChatService struct {
	postMessageFn  func(ctx context.Context, userID, body string) (*model.MessageView, error)
	listMessagesFn func(ctx context.Context) ([]model.MessageView, error)
}

func (m *mockChatService) PostMessage(ctx context.Context, userID, body string) (*model.MessageView, error) {
	if m.postMessageFn != nil {
		return m.postMessageFn(ctx, userID, body)
	}
	return &model.MessageView{Username: "alice", Body: body, CreatedAt: time.Now().UTC()}, nil
}

func (m *mockChatService) ListMessages(ctx context.Context) ([]model.MessageView, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx)
	}
	return []model.MessageView{}, nil
}

var _ ChatServiceInterface = (*mockChatService)(nil)

// --- ListMessages ---

func TestListMessages_ReturnsJSONArray(t *testing.T) {
	createdAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	svc := &mockChatService{
		listMessagesFn: func(ctx context.Context) ([]model.MessageView, error) {
			return []model.MessageView{
				{Username: "alice", Body: "hello", CreatedAt: createdAt},
			}, nil
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.ListMessages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var views []struct {
		Username  string    `json:"username"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}
	if views[0].Username != "alice" || views[0].Message != "hello" {
		t.Errorf("views[0] = %+v, want alice/hello", views[0])
	}
	if !views[0].Timestamp.Equal(createdAt) {
		t.Errorf("timestamp = %v, want %v", views[0].Timestamp, createdAt)
	}
}

func TestListMessages_EmptyStore_ReturnsEmptyArray(t *testing.T) {
	h := NewMessageHandler(&mockChatService{})

	rec := httptest.NewRecorder()
	h.ListMessages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	// nullではなく[]を返すこと
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestListMessages_StoreError_Returns500(t *testing.T) {
	svc := &mockChatService{
		listMessagesFn: func(ctx context.Context) ([]model.MessageView, error) {
			return nil, errors.New("db closed")
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.ListMessages(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// --- PostMessage ---

func postMessageRequestWithUser(body, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestPostMessage_Success_Returns201(t *testing.T) {
	var gotUserID, gotBody string
	svc := &mockChatService{
		postMessageFn: func(ctx context.Context, userID, body string) (*model.MessageView, error) {
			gotUserID = userID
			gotBody = body
			return &model.MessageView{Username: "alice", Body: body, CreatedAt: time.Now().UTC()}, nil
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.PostMessage(rec, postMessageRequestWithUser(`{"message":"hello"}`, "user-1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if gotUserID != "user-1" || gotBody != "hello" {
		t.Errorf("service received userID=%q body=%q, want user-1/hello", gotUserID, gotBody)
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
	if resp.Message != "Message sent successfully" {
		t.Errorf("message = %q, want %q", resp.Message, "Message sent successfully")
	}
}

// セッションミドルウェアを通過していないリクエストは401で、サービスに届かない
func TestPostMessage_WithoutUserID_Returns401(t *testing.T) {
	svc := &mockChatService{
		postMessageFn: func(ctx context.Context, userID, body string) (*model.MessageView, error) {
			t.Error("PostMessage should not be called")
			return nil, nil
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.PostMessage(rec, postMessageRequestWithUser(`{"message":"hello"}`, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestPostMessage_EmptyBody_Returns400(t *testing.T) {
	svc := &mockChatService{
		postMessageFn: func(ctx context.Context, userID, body string) (*model.MessageView, error) {
			return nil, chat.ErrEmptyBody
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.PostMessage(rec, postMessageRequestWithUser(`{"message":""}`, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q, want VALIDATION_ERROR", body.Code)
	}
}

func TestPostMessage_MalformedJSON_Returns400(t *testing.T) {
	h := NewMessageHandler(&mockChatService{})

	rec := httptest.NewRecorder()
	h.PostMessage(rec, postMessageRequestWithUser(`{not json`, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPostMessage_StoreError_Returns500(t *testing.T) {
	svc := &mockChatService{
		postMessageFn: func(ctx context.Context, userID, body string) (*model.MessageView, error) {
			return nil, errors.New("disk full")
		},
	}
	h := NewMessageHandler(svc)

	rec := httptest.NewRecorder()
	h.PostMessage(rec, postMessageRequestWithUser(`{"message":"hello"}`, "user-1"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
