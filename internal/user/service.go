// Package user はログイン中ユーザー自身のプロフィール管理と退会処理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/repository"
)

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Profile はユーザーと現在の所属を表す。未所属の場合Membershipはnil。
type Profile struct {
	User       *model.User
	Membership *model.FamilyMember
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	memberRepo repository.MemberRepository
	hasher     PasswordHasher
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	memberRepo repository.MemberRepository,
	hasher PasswordHasher,
) *Service {
	return &Service{
		userRepo:   userRepo,
		memberRepo: memberRepo,
		hasher:     hasher,
		now:        time.Now,
	}
}

// Me はユーザー情報と所属メンバーシップを返す。
func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	member, err := s.memberRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return &Profile{User: user, Membership: member}, nil
}

// UpdateProfile は表示名を更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (*Profile, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateName(ctx, userID, name, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update name: %w", err)
	}
	return s.Me(ctx, userID)
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.PasswordHash, current) {
		return model.NewValidationError("current_password", "現在のパスワードが正しくありません。")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return nil
}

// Withdraw はユーザーの退会処理を実行する。
// 家族からの離脱とユーザー削除は同一トランザクションで行われ、途中で失敗しても片方だけが反映されることはない。
// 他のメンバーがいるオーガナイザーは退会できない。唯一のメンバーだった家族は削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "退会処理を開始します", slog.String("user_id", userID))

	familyDeleted, err := s.userRepo.Withdraw(ctx, userID)
	if errors.Is(err, repository.ErrOrganizerHasMembers) {
		return model.NewOrganizerMustTransferBeforeWithdrawError()
	}
	if err != nil {
		return fmt.Errorf("退会処理に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Bool("family_deleted", familyDeleted),
	)
	return nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
