// Package mail はメール送信を抽象化する。
// 開発・テスト用のConsoleMailerと、本番用のSendGridMailerを提供する。
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Message は送信するメール1通を表す。本文はプレーンテキストのみ。
type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	Text      string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ConsoleMailer はメールを送信せず、構造化ログに出力するMailer。
type ConsoleMailer struct {
	logger *slog.Logger
}

// NewConsoleMailer はConsoleMailerを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewConsoleMailer(logger *slog.Logger) *ConsoleMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleMailer{logger: logger}
}

// Send はメール内容をINFOレベルでログ出力する。
func (m *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail (console)",
		slog.String("to", msg.ToAddress),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}

// VerificationMessage は認証コード通知メールを組み立てる。
func VerificationMessage(toAddress, toName, code string, ttl time.Duration) Message {
	return Message{
		ToAddress: toAddress,
		ToName:    toName,
		Subject:   "メールアドレスの確認",
		Text: fmt.Sprintf(
			"%s さん\n\n認証コード: %s\n\nこのコードの有効期限は%d分です。\n心当たりがない場合はこのメールを破棄してください。\n",
			toName, code, int(ttl.Minutes()),
		),
	}
}

// InvitationMessage は家族への招待メールを組み立てる。
func InvitationMessage(toAddress, familyName, inviterName, role, joinURL string, expiresAt time.Time) Message {
	return Message{
		ToAddress: toAddress,
		Subject:   fmt.Sprintf("%s への招待", familyName),
		Text: fmt.Sprintf(
			"%s さんから「%s」に%sとして招待されました。\n\n以下のリンクから参加できます:\n%s\n\n有効期限: %s\n",
			inviterName, familyName, role, joinURL, expiresAt.UTC().Format(time.RFC3339),
		),
	}
}

var _ Mailer = (*ConsoleMailer)(nil)
