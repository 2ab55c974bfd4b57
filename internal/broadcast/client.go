package broadcast

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許容する時間。
	writeWait = 10 * time.Second

	// pongWait はpong応答を待つ時間。これを超えると切断とみなす。
	pongWait = 60 * time.Second

	// pingPeriod はpingの送信間隔。pongWaitより短くする必要がある。
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize は購読者からの受信メッセージの上限バイト数。
	// 購読は受信専用のため、届くのは制御フレーム程度を想定している。
	maxMessageSize = 512

	// sendBufferSize は購読者ごとの送信バッファ長。
	// これを使い切った購読者はドロップされる。
	sendBufferSize = 64
)

// Client はWebSocketで接続された購読者1人分の状態を保持する。
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// NewClient は接続済みのWebSocketコネクションから購読者を生成する。
// 生成後にHub.Registerへ渡すこと。
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// writePump は送信チャネルからのイベント書き出しと定期pingを行う。
// 購読者ごとに1本のゴルーチンで動かす。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// ハブ側でunregisterされた
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump は切断検知のためにコネクションを読み続ける。
// 購読者からのデータフレームは配信には使わないため破棄する。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("subscriber read error",
					slog.String("remote_addr", c.remoteAddr),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}
