package model

import "time"

// Message は投稿されたチャットメッセージを表す。
// 認証済みセッション経由でのみ作成され、以後変更・削除されない。
// IDはストアが採番する単調増加の整数で、CreatedAtの秒未満衝突時も
// 全順序を安定させるタイブレーカーとして使う。
type Message struct {
	ID        int64
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// MessageView はメッセージ一覧・配信用の表示形式。
// 投稿者のusernameをJOINした読み取り専用のビュー。
type MessageView struct {
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}
