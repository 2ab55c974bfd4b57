package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatroom/internal/broadcast"
	"github.com/hitoshi/chatroom/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// MetricsMiddleware はHTTPメトリクス記録ミドルウェアのインターフェース。
type MetricsMiddleware interface {
	Middleware() func(next http.Handler) http.Handler
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger        *slog.Logger
	SessionFinder middleware.SessionFinder
	RateLimiter   *middleware.RateLimiter
	Metrics       MetricsMiddleware // nilの場合はメトリクスを記録しない

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	AuthMetrics AuthMetrics

	// メッセージ
	ChatService ChatServiceInterface

	// 配信
	Hub             *broadcast.Hub
	WSAllowedOrigin string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成した
// chi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → Logging → （ルートごとに）RateLimit / Session
//
// 認証が必要なのはPOST /api/messagesのみ。GET /api/messagesと/wsの購読は
// 認証不要で、/dashboard.htmlはハンドラー内でセッションを確認して
// リダイレクトする。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.AuthMetrics)
	messageHandler := NewMessageHandler(deps.ChatService)
	wsHandler := NewWSHandler(deps.Hub, deps.WSAllowedOrigin)
	pageHandler, err := NewPageHandler(deps.AuthService)
	if err != nil {
		return nil, err
	}

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// --- 認証フロー ---
	// 登録とログインはブルートフォース対策としてIP単位のレート制限をかける
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})
	r.Post("/logout", authHandler.Logout)

	// --- メッセージAPI ---
	// GETは認証不要、POSTはセッション必須
	r.Get("/api/messages", messageHandler.ListMessages)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.PostMiddleware())
		r.Post("/api/messages", messageHandler.PostMessage)
	})

	// --- リアルタイム配信 ---
	r.Get("/ws", wsHandler.Subscribe)

	// --- ページ ---
	r.Get("/", pageHandler.Frontpage)
	r.Get("/frontpage.html", pageHandler.Frontpage)
	r.Get("/login.html", pageHandler.LoginPage)
	r.Get("/register.html", pageHandler.RegisterPage)
	r.Get("/dashboard.html", pageHandler.Dashboard)

	return r, nil
}
