package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chatroom/internal/chat"
	"github.com/hitoshi/chatroom/internal/middleware"
	"github.com/hitoshi/chatroom/internal/model"
)

// ChatServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	PostMessage(ctx context.Context, userID, body string) (*model.MessageView, error)
	ListMessages(ctx context.Context) ([]model.MessageView, error)
}

// MessageHandler はメッセージAPIのHTTPハンドラー。
type MessageHandler struct {
	service ChatServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service ChatServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// postMessageRequest はメッセージ投稿の入力。
type postMessageRequest struct {
	Message string `json:"message"`
}

// postMessageResponse はメッセージ投稿の成功レスポンス。
type postMessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListMessages は全メッセージを投稿時刻の昇順で返す。
// GET /api/messages
// 認証不要。
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListMessages(r.Context())
	if err != nil {
		slog.Error("failed to list messages", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// PostMessage は認証済みユーザーのメッセージを受け付ける。
// POST /api/messages
// セッションミドルウェアの後に配置すること。
func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	if _, err := h.service.PostMessage(r.Context(), userID, req.Message); err != nil {
		if errors.Is(err, chat.ErrEmptyBody) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("メッセージ本文が空です"))
			return
		}
		slog.Error("failed to post message", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(postMessageResponse{
		Success: true,
		Message: "Message sent successfully",
	})
}
