// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/chatroom/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーは登録後不変のため、更新・削除操作は公開しない。
type UserRepository interface {
	// Create はユーザーを作成する。
	// usernameが既に存在する場合はmodel.ErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Append はメッセージを追記する。
	// IDの採番と作成時刻の記録は永続化の時点でストア側のクロックで行う。
	Append(ctx context.Context, authorID, body string) (*model.Message, error)

	// ListOrdered は全メッセージを投稿者のusernameとJOINして返す。
	// created_at昇順、同時刻はID昇順で全順序を安定させる。
	// 再呼び出し可能な有限の読み取りであり、ライブストリームではない。
	ListOrdered(ctx context.Context) ([]model.MessageView, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。
	// 未知のIDまたは期限切れの場合はnilを返す。有効期限の延長は行わない。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	// 冪等であり、存在しないIDの削除はエラーにならない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
