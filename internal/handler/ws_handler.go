package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/chatroom/internal/broadcast"
)

// WSHandler はリアルタイム配信の購読接続を受け付けるハンドラー。
// 購読に認証は不要（配信は公開のメッセージ一覧と同じ情報しか流さない）。
type WSHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
// allowedOriginが空の場合はOriginを検証しない。
// 指定された場合はそのOriginからの接続のみ許可する。
func NewWSHandler(hub *broadcast.Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Subscribe はWebSocketへアップグレードし、購読者としてハブに登録する。
// GET /ws
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗した時点でレスポンスは書き込み済み
		slog.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	h.hub.Register(broadcast.NewClient(h.hub, conn))
}
