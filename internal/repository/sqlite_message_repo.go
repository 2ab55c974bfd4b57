package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/chatroom/internal/model"
)

// SQLiteMessageRepo はSQLiteを使用したメッセージリポジトリ。
type SQLiteMessageRepo struct {
	db *sql.DB

	// now はテストからクロックを差し替えるためのフック。
	now func() time.Time
}

// NewSQLiteMessageRepo はSQLiteMessageRepoを生成する。
func NewSQLiteMessageRepo(db *sql.DB) *SQLiteMessageRepo {
	return &SQLiteMessageRepo{db: db, now: time.Now}
}

// Append はメッセージを追記する。
// 作成時刻は永続化の時点でのサーバークロックを使い、クライアント指定は受け付けない。
// IDはAUTOINCREMENTで単調増加に採番される。
func (r *SQLiteMessageRepo) Append(ctx context.Context, authorID, body string) (*model.Message, error) {
	createdAt := r.now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, body, created_at) VALUES (?, ?, ?)`,
		authorID, body, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get message ID: %w", err)
	}

	return &model.Message{
		ID:        id,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: createdAt,
	}, nil
}

// ListOrdered は全メッセージを投稿者のusernameとJOINして返す。
// created_at昇順、タイブレークはID昇順。メッセージが無い場合は空スライスを返す。
func (r *SQLiteMessageRepo) ListOrdered(ctx context.Context) ([]model.MessageView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.username, m.body, m.created_at
		 FROM messages m
		 JOIN users u ON m.user_id = u.id
		 ORDER BY m.created_at ASC, m.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	views := []model.MessageView{}
	for rows.Next() {
		var v model.MessageView
		if err := rows.Scan(&v.Username, &v.Body, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return views, nil
}

// compile-time interface check
var _ MessageRepository = (*SQLiteMessageRepo)(nil)
