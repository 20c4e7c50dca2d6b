package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// sendResult は送信失敗の分類。
type sendResult int

const (
	// sendResultRetry は時間をおいて再送すべき失敗（429/5xx/通信エラー）。
	sendResultRetry sendResult = iota
	// sendResultStop は再送しても成功しない失敗（401/403などの4xx）。
	sendResultStop
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 4 * time.Second
	// DefaultMaxAttempts は再送を含む送信試行回数のデフォルト。
	DefaultMaxAttempts = 3
)

// classifySendError は送信エラーを再送可否で分類する。
// StatusError以外（接続失敗・タイムアウト）は一時的な障害とみなす。
func classifySendError(err error) sendResult {
	var se *StatusError
	if !errors.As(err, &se) {
		return sendResultRetry
	}
	switch {
	case se.StatusCode == http.StatusTooManyRequests:
		return sendResultRetry
	case se.StatusCode >= http.StatusInternalServerError:
		return sendResultRetry
	default:
		return sendResultStop
	}
}

// calculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大4秒。
func calculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// RetryingMailer は一時的な送信失敗を指数バックオフで再送するMailer。
type RetryingMailer struct {
	next        Mailer
	maxAttempts int
	logger      *slog.Logger
	wait        func(ctx context.Context, d time.Duration) error
}

// NewRetryingMailer はnextをラップしたRetryingMailerを生成する。
// maxAttemptsが1未満の場合はDefaultMaxAttemptsを使用する。
func NewRetryingMailer(next Mailer, maxAttempts int, logger *slog.Logger) *RetryingMailer {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RetryingMailer{
		next:        next,
		maxAttempts: maxAttempts,
		logger:      logger,
		wait:        sleepContext,
	}
}

// Send はnextで送信し、再送可能な失敗であればmaxAttemptsまで再送する。
// ctxがキャンセルされた場合は待機を中断して最後のエラーを返す。
func (m *RetryingMailer) Send(ctx context.Context, msg Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = m.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if classifySendError(err) == sendResultStop || attempt >= m.maxAttempts {
			return err
		}

		delay := calculateBackoff(attempt - 1)
		m.logger.WarnContext(ctx, "mail send failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		if werr := m.wait(ctx, delay); werr != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Mailer = (*RetryingMailer)(nil)
