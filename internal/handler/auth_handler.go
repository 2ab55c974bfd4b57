// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/chatroom/internal/auth"
	"github.com/hitoshi/chatroom/internal/middleware"
	"github.com/hitoshi/chatroom/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
type AuthMetrics interface {
	RecordLoginSuccess()
	RecordLoginFail()
	RecordUserRegistered()
}

// nopAuthMetrics はメトリクス未設定時のデフォルト実装。
type nopAuthMetrics struct{}

func (nopAuthMetrics) RecordLoginSuccess()   {}
func (nopAuthMetrics) RecordLoginFail()      {}
func (nopAuthMetrics) RecordUserRegistered() {}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector AuthMetrics) *AuthHandler {
	if collector == nil {
		collector = nopAuthMetrics{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// credentials は登録・ログインの入力。
// HTMLフォーム（application/x-www-form-urlencoded）とJSONの両方を受け付ける。
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// parseCredentials はリクエストボディから資格情報を取り出す。
func parseCredentials(r *http.Request) (*credentials, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var c credentials
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			return nil, err
		}
		return &c, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}

// Register は新規ユーザーを登録する。
// POST /register
// 成功時は /login.html にリダイレクトする。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	_, err = h.service.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmptyCredentials):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ユーザー名とパスワードは必須です"))
		case errors.Is(err, model.ErrDuplicateUsername):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewDuplicateUsernameError())
		default:
			slog.Error("registration failed", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	h.metrics.RecordUserRegistered()
	http.Redirect(w, r, "/login.html", http.StatusSeeOther)
}

// Login は資格情報を検証し、セッションCookieを設定する。
// POST /login
// 成功時は /dashboard.html にリダイレクトする。
// 失敗レスポンスはユーザー不存在とパスワード不一致で同一の形になる。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	session, err := h.service.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.RecordLoginFail()
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLoginSuccess()
	http.Redirect(w, r, "/dashboard.html", http.StatusSeeOther)
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /logout
// 成功時は /frontpage.html にリダイレクトする。ストア障害時のみ500を返す。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/frontpage.html", http.StatusSeeOther)
}
