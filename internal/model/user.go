// Package model はドメインモデルを定義する。
package model

import "time"

// User はチャット利用ユーザーを表す。
// 登録後は不変であり、更新・削除の経路は存在しない。
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcryptハッシュ。平文パスワードは保持しない
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// 発行時刻から固定期間で失効する（利用による延長は行わない）。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
