package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chatroom/internal/middleware"
)

//go:embed pages/*.html
var pagesFS embed.FS

// PageHandler は静的ページとダッシュボードの配信を行う。
// ダッシュボードのみセッションを要求し、未認証の場合はログインページへ
// リダイレクトする（APIと違い401ではなくリダイレクトを返す）。
type PageHandler struct {
	auth      AuthServiceInterface
	dashboard *template.Template
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(auth AuthServiceInterface) (*PageHandler, error) {
	tmpl, err := template.ParseFS(pagesFS, "pages/dashboard.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		auth:      auth,
		dashboard: tmpl,
	}, nil
}

// servePage は埋め込み済みの静的ページを返すハンドラーを生成する。
func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := pagesFS.ReadFile("pages/" + name)
		if err != nil {
			middleware.WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	}
}

// Frontpage はトップページを返す。
// GET / および GET /frontpage.html
func (h *PageHandler) Frontpage(w http.ResponseWriter, r *http.Request) {
	servePage("frontpage.html")(w, r)
}

// LoginPage はログインフォームを返す。
// GET /login.html
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	servePage("login.html")(w, r)
}

// RegisterPage は登録フォームを返す。
// GET /register.html
func (h *PageHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	servePage("register.html")(w, r)
}

// Dashboard は認証済みユーザーにダッシュボードを返す。
// GET /dashboard.html
// セッションが無効な場合は /login.html にリダイレクトする。
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, "/login.html", http.StatusSeeOther)
		return
	}

	user, err := h.auth.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if user == nil {
		http.Redirect(w, r, "/login.html", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.dashboard.Execute(w, map[string]string{"Username": user.Username}); err != nil {
		slog.Error("failed to render dashboard", slog.String("error", err.Error()))
	}
}
