// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService は投稿されたメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧ユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限の装飾タグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文をサニタイズして安全なテキストを返す。
	// 許可タグ（strong, em, code）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 前後の空白は取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: strong, em, code（属性なし）
//   - それ以外のタグとすべてのon*イベント属性は許可リスト外のため除去される
//   - リンク・画像は許可しない（チャット本文はほぼ平文として扱う）
func NewMessageSanitizer() *messageSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "code")

	return &messageSanitizer{
		policy: p,
	}
}

// Sanitize はメッセージ本文をサニタイズして安全なテキストを返す。
func (s *messageSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
