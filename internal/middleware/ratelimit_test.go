package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// クリーンアップが走らない短時間テスト用の設定
func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		LoginRate:       rate.Limit(10.0 / 60.0),
		LoginBurst:      3,
		PostRate:        rate.Limit(1),
		PostBurst:       2,
		CleanupInterval: time.Hour,
		EntryTTL:        time.Hour,
	}
}

// 環境変数由来の1分あたり上限がレートとバーストに反映される
func TestConfigForLimits(t *testing.T) {
	cfg := ConfigForLimits(10, 60)

	if cfg.LoginRate != rate.Limit(10.0/60.0) {
		t.Errorf("LoginRate = %v, want %v", cfg.LoginRate, rate.Limit(10.0/60.0))
	}
	if cfg.LoginBurst != 10 {
		t.Errorf("LoginBurst = %d, want 10", cfg.LoginBurst)
	}
	if cfg.PostRate != rate.Limit(1) {
		t.Errorf("PostRate = %v, want 1", cfg.PostRate)
	}
	if cfg.PostBurst != 60 {
		t.Errorf("PostBurst = %d, want 60", cfg.PostBurst)
	}
	if cfg.CleanupInterval != DefaultRateLimiterConfig().CleanupInterval {
		t.Errorf("CleanupInterval = %v, want default", cfg.CleanupInterval)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- テスト ---

// バースト分を使い切ると429になり、Retry-Afterヘッダーが付く
func TestLoginMiddleware_BurstExhaustion_Returns429(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
	body := decodeAPIError(t, rec)
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("error code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
}

// IPが異なればリミッターは独立している
func TestLoginMiddleware_IndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(okHandler())

	// 1つ目のIPのバーストを使い切る
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// 別のIPは影響を受けない
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.2:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (limiters are not independent)", rec.Code, http.StatusOK)
	}
	if got := rl.LoginLimiterCount(); got != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", got)
	}
}

// リバースプロキシ配下ではX-Forwarded-Forの先頭をキーにする
func TestLoginMiddleware_UsesForwardedFor(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(okHandler())

	// X-Forwarded-Forが同じなら、RemoteAddrが違っても同一キー
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:2000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d (forwarded IP was not used as key)", rec.Code, http.StatusTooManyRequests)
	}
	if got := rl.LoginLimiterCount(); got != 1 {
		t.Errorf("LoginLimiterCount = %d, want 1", got)
	}
}

// 投稿リミッターはコンテキストのユーザーIDをキーにする
func TestPostMiddleware_BurstExhaustion_PerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.PostMiddleware()(okHandler())

	doPost := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// user-1のバースト(2)を使い切る
	for i := 0; i < 2; i++ {
		if code := doPost("user-1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, code, http.StatusOK)
		}
	}
	if code := doPost("user-1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// user-2は独立
	if code := doPost("user-2"); code != http.StatusOK {
		t.Errorf("user-2 status = %d, want %d", code, http.StatusOK)
	}
	if got := rl.PostLimiterCount(); got != 2 {
		t.Errorf("PostLimiterCount = %d, want 2", got)
	}
}

// セッションミドルウェアを通っていないリクエストは401
func TestPostMiddleware_MissingUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.PostMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
