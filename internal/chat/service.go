// Package chat はメッセージの投稿・取得と配信への橋渡しを提供する。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/chatroom/internal/broadcast"
	"github.com/hitoshi/chatroom/internal/model"
	"github.com/hitoshi/chatroom/internal/repository"
	"github.com/hitoshi/chatroom/internal/security"
)

// ErrEmptyBody はメッセージ本文が空（サニタイズ後に空になる場合を含む）のエラー。
var ErrEmptyBody = errors.New("message body is empty")

// Publisher は新着メッセージイベントの配信インターフェース。
// broadcast.Hubの部分集合として定義する。配信はベストエフォートで、
// 実装はエラーを返さない。
type Publisher interface {
	Publish(event broadcast.NewMessageEvent)
}

// MetricsCollector はメッセージ投稿数の収集インターフェース。
type MetricsCollector interface {
	RecordMessagePosted()
}

// nopMetrics はメトリクス未設定時のデフォルト実装。
type nopMetrics struct{}

func (nopMetrics) RecordMessagePosted() {}

// Service はメッセージゲートウェイのビジネスロジックを提供する。
type Service struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	sanitizer   security.MessageSanitizerService
	publisher   Publisher
	metrics     MetricsCollector
}

// NewService はServiceを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	sanitizer security.MessageSanitizerService,
	publisher Publisher,
	collector MetricsCollector,
) *Service {
	if collector == nil {
		collector = nopMetrics{}
	}
	return &Service{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
		publisher:   publisher,
		metrics:     collector,
	}
}

// PostMessage は認証済みユーザーのメッセージを永続化し、
// 接続中の購読者へ配信する。
// 本文はサニタイズ後に空であればErrEmptyBodyを返す。
// 配信はベストエフォートであり、購読者への到達可否にかかわらず
// メッセージは永続化された時点で成功となる。
func (s *Service) PostMessage(ctx context.Context, userID, body string) (*model.MessageView, error) {
	clean := s.sanitizer.Sanitize(body)
	if clean == "" {
		return nil, ErrEmptyBody
	}

	// usernameは配信ペイロードと戻り値の表示形式に必要
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find author: %w", err)
	}
	if user == nil {
		// 有効なセッションは既存ユーザーを参照するため通常到達しない
		return nil, fmt.Errorf("author not found: %s", userID)
	}

	msg, err := s.messageRepo.Append(ctx, user.ID, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	s.metrics.RecordMessagePosted()

	view := &model.MessageView{
		Username:  user.Username,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}

	// 永続化が済んだ後の配信。失敗しても書き込みの成否には影響しない
	s.publisher.Publish(broadcast.NewMessageEvent{
		Username:  view.Username,
		Body:      view.Body,
		CreatedAt: view.CreatedAt,
	})

	slog.Info("message posted",
		slog.String("user_id", user.ID),
		slog.Int64("message_id", msg.ID),
	)

	return view, nil
}

// ListMessages は全メッセージを投稿時刻の昇順で返す。
// 認証の有無にかかわらず呼び出せる。
func (s *Service) ListMessages(ctx context.Context) ([]model.MessageView, error) {
	views, err := s.messageRepo.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return views, nil
}
