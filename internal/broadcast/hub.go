// Package broadcast は新着メッセージのベストエフォート配信を提供する。
//
// 接続中の全購読者へのプッシュのみを行い、永続化・ACK・再送・リプレイは
// 一切持たない。publish時に切断していた購読者はそのイベントを受け取れない。
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// NewMessageEvent は新着メッセージ配信のペイロード。
// フィールド名はメッセージ一覧APIのJSON形式と揃える。
type NewMessageEvent struct {
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}

// envelope はWebSocketに書き出すイベントの外側のフォーマット。
type envelope struct {
	Event string          `json:"event"`
	Data  NewMessageEvent `json:"data"`
}

// eventName は新着メッセージイベントのイベント名。
const eventName = "newMessage"

// MetricsCollector はハブが通知する購読者数・ドロップ数の収集インターフェース。
type MetricsCollector interface {
	RecordBroadcastClients(count int)
	RecordBroadcastDropped()
}

// nopMetrics はメトリクス未設定時のデフォルト実装。
type nopMetrics struct{}

func (nopMetrics) RecordBroadcastClients(int) {}
func (nopMetrics) RecordBroadcastDropped()    {}

// Hub は接続中の購読者集合を管理し、イベントをファンアウトする。
// 集合の変更・送信チャネルのclose・publishの送信はすべて同一の
// ミューテックスの下で行い、閉じたチャネルへの送信を防ぐ。
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	metrics MetricsCollector
}

// NewHub はHubを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewHub(collector MetricsCollector) *Hub {
	if collector == nil {
		collector = nopMetrics{}
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: collector,
	}
}

// Register は購読者をハブに登録し、読み書きのポンプを起動する。
// 購読に認証は不要。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.RecordBroadcastClients(count)
	slog.Info("subscriber connected",
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("subscribers", count),
	)

	go c.writePump()
	go c.readPump()
}

// unregister は購読者を集合から外し、送信チャネルを閉じる。
// 既に外れている場合は何もしない（切断検知は複数経路から届きうる）。
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	count := len(h.clients)
	h.mu.Unlock()

	if removed {
		h.metrics.RecordBroadcastClients(count)
		slog.Info("subscriber disconnected",
			slog.String("remote_addr", c.remoteAddr),
			slog.Int("subscribers", count),
		)
	}
}

// removeLocked は購読者を集合から外し、送信チャネルを閉じる。
// h.muを保持した状態で呼ぶこと。既に外れている場合は何もせずfalseを返す。
func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// Publish はイベントを接続中の全購読者へプッシュする。
// 送信バッファが詰まっている購読者へのイベントは破棄し、その購読者を
// 切断する。失敗してもエラーは返さない（配信はベストエフォート）。
// 送信とclose(c.send)は同一のミューテックスの下で行う。送信は
// ノンブロッキングのため、ロックの保持時間は購読者数に比例する程度で済む。
func (h *Hub) Publish(event NewMessageEvent) {
	payload, err := json.Marshal(envelope{Event: eventName, Data: event})
	if err != nil {
		slog.Error("failed to marshal broadcast event", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	var dropped []*Client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		h.removeLocked(c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	for _, c := range dropped {
		h.metrics.RecordBroadcastDropped()
		slog.Warn("dropping slow subscriber",
			slog.String("remote_addr", c.remoteAddr),
		)
		c.conn.Close()
	}
	if len(dropped) > 0 {
		h.metrics.RecordBroadcastClients(count)
	}
}

// SubscriberCount は現在の購読者数を返す。
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown は全購読者の接続を閉じる。
// ctxはシグネチャの一貫性のために受け取るが、クローズは即座に完了する。
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	snapshot := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	for _, c := range snapshot {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		c.conn.Close()
	}

	h.metrics.RecordBroadcastClients(0)
	slog.Info("broadcast hub stopped", slog.Int("closed_subscribers", len(snapshot)))
}
