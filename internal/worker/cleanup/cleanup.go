// Package cleanup は日次の定期メンテナンスジョブを提供する。
// 期限切れのpending招待をexpiredに更新し、保持期間を超えた未認証ユーザーを削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/familyhub/internal/metrics"
)

// デフォルトの未認証ユーザー保持日数。
const DefaultUnverifiedRetentionDays = 7

// メトリクスのtargetラベル値。
const (
	targetExpiredInvitations = "expired_invitations"
	targetUnverifiedUsers    = "unverified_users"
)

// InvitationExpirer は期限切れ招待を一括でexpiredにする。
type InvitationExpirer interface {
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// UnverifiedUserPurger は未認証ユーザーを一括で削除する。
type UnverifiedUserPurger interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は招待の期限切れ処理と未認証ユーザーの削除を行うジョブ。
// 冪等であり、処理対象がない場合もエラーにならない。
type CleanupJob struct {
	invitations InvitationExpirer
	users       UnverifiedUserPurger
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	now         func() time.Time

	UnverifiedRetentionDays int // 未認証ユーザーの保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(invitations InvitationExpirer, users UnverifiedUserPurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	return &CleanupJob{
		invitations:             invitations,
		users:                   users,
		logger:                  logger,
		metrics:                 metrics.OrNop(collector),
		now:                     time.Now,
		UnverifiedRetentionDays: DefaultUnverifiedRetentionDays,
	}
}

// Run は両方の処理を実行する。一方が失敗しても他方は実行し、エラーはまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	now := j.now()

	var errs []error

	expired, err := j.invitations.ExpirePending(ctx, now)
	if err != nil {
		j.logger.Error("期限切れ招待の更新に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("期限切れ招待の更新に失敗: %w", err))
	} else {
		j.metrics.RecordCleanup(targetExpiredInvitations, expired)
	}

	cutoff := now.AddDate(0, 0, -j.UnverifiedRetentionDays)
	purged, err := j.users.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("未認証ユーザーの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.UnverifiedRetentionDays),
		)
		errs = append(errs, fmt.Errorf("未認証ユーザーの削除に失敗: %w", err))
	} else {
		j.metrics.RecordCleanup(targetUnverifiedUsers, purged)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("expired_invitations", expired),
		slog.Int64("deleted_unverified_users", purged),
		slog.Int("retention_days", j.UnverifiedRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
