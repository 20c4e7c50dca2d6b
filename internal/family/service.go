// Package family は家族（テナント）の作成、メンバー管理、招待によるオンボーディングを提供する。
package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/auth"
	"github.com/hitoshi/familyhub/internal/mail"
	"github.com/hitoshi/familyhub/internal/metrics"
	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/repository"
)

// Config は家族サービスの設定。
type Config struct {
	InvitationTTL time.Duration
	// BaseURL は招待リンクの組み立てに使用するフロントエンドのURL（末尾スラッシュなし）。
	BaseURL string
}

// Detail は家族とそのメンバー一覧。
type Detail struct {
	Family  *model.Family
	Members []model.MemberWithUser
}

// Service は家族・メンバー・招待のビジネスロジックを提供する。
type Service struct {
	families    repository.FamilyRepository
	members     repository.MemberRepository
	invitations repository.InvitationRepository
	users       repository.UserRepository
	mailer      mail.Mailer
	metrics     metrics.MetricsCollector
	cfg         Config
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	families repository.FamilyRepository,
	members repository.MemberRepository,
	invitations repository.InvitationRepository,
	users repository.UserRepository,
	mailer mail.Mailer,
	collector metrics.MetricsCollector,
	cfg Config,
) *Service {
	return &Service{
		families:    families,
		members:     members,
		invitations: invitations,
		users:       users,
		mailer:      mailer,
		metrics:     metrics.OrNop(collector),
		cfg:         cfg,
		now:         time.Now,
	}
}

// --- 家族 ---

// Create は家族を作成し、作成者をオーガナイザーとして登録する。
func (s *Service) Create(ctx context.Context, userID, name string) (*Detail, error) {
	existing, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyInFamilyError()
	}

	now := s.now()
	family := &model.Family{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	organizer := &model.FamilyMember{
		ID:       uuid.New().String(),
		FamilyID: family.ID,
		UserID:   userID,
		Role:     model.RoleOrganizer,
		JoinedAt: now,
	}

	if err := s.families.CreateWithOrganizer(ctx, family, organizer); err != nil {
		if errors.Is(err, repository.ErrAlreadyInFamily) {
			return nil, model.NewAlreadyInFamilyError()
		}
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	slog.InfoContext(ctx, "family created",
		slog.String("family_id", family.ID),
		slog.String("user_id", userID),
	)
	return s.detail(ctx, family)
}

// Get は呼び出し元の所属家族をメンバー付きで返す。
func (s *Service) Get(ctx context.Context, userID string) (*Detail, error) {
	member, err := s.requireMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	family, err := s.findFamily(ctx, member.FamilyID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, family)
}

// Rename は家族名を変更する。オーガナイザーのみ。
func (s *Service) Rename(ctx context.Context, userID, name string) (*Detail, error) {
	member, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.families.UpdateName(ctx, member.FamilyID, name, s.now()); err != nil {
		return nil, fmt.Errorf("failed to rename family: %w", err)
	}
	return s.Get(ctx, userID)
}

// Delete は家族を削除する。オーガナイザーのみ。メンバー・招待・プロジェクトはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID string) error {
	member, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.families.DeleteByID(ctx, member.FamilyID); err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	slog.InfoContext(ctx, "family deleted",
		slog.String("family_id", member.FamilyID),
		slog.String("user_id", userID),
	)
	return nil
}

// --- メンバー ---

// ListMembers は所属家族のメンバー一覧を返す。
func (s *Service) ListMembers(ctx context.Context, userID string) ([]model.MemberWithUser, error) {
	member, err := s.requireMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listMembers(ctx, member.FamilyID)
}

// ChangeRole はメンバーの役割を変更する。オーガナイザーのみ。
// organizerを指定した場合はオーガナイザー権限の移譲となり、呼び出し元はparentに降格する。
func (s *Service) ChangeRole(ctx context.Context, userID, targetUserID string, role model.Role) ([]model.MemberWithUser, error) {
	caller, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if targetUserID == userID {
		return nil, model.NewOrganizerRoleChangeError()
	}
	if !role.Valid() {
		return nil, model.NewValidationError("role", "役割はorganizer、parent、childのいずれかを指定してください。")
	}

	if role == model.RoleOrganizer {
		err = s.members.TransferOrganizer(ctx, caller.FamilyID, userID, targetUserID)
	} else {
		err = s.members.UpdateRole(ctx, caller.FamilyID, targetUserID, role)
	}
	switch {
	case errors.Is(err, repository.ErrMembershipNotFound):
		return nil, model.NewMemberNotFoundError(targetUserID)
	case err != nil:
		return nil, fmt.Errorf("failed to change role: %w", err)
	}

	slog.InfoContext(ctx, "member role changed",
		slog.String("family_id", caller.FamilyID),
		slog.String("target_user_id", targetUserID),
		slog.String("role", string(role)),
	)
	return s.listMembers(ctx, caller.FamilyID)
}

// RemoveMember はメンバーを家族から外す。オーガナイザーのみ。自分自身は対象外（離脱を使用する）。
func (s *Service) RemoveMember(ctx context.Context, userID, targetUserID string) error {
	caller, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return err
	}
	if targetUserID == userID {
		return model.NewPermissionDeniedError("自分自身は削除できません。家族からの離脱を使用してください。")
	}

	if err := s.members.Remove(ctx, caller.FamilyID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return model.NewMemberNotFoundError(targetUserID)
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	slog.InfoContext(ctx, "member removed",
		slog.String("family_id", caller.FamilyID),
		slog.String("target_user_id", targetUserID),
	)
	return nil
}

// Leave は所属家族から離脱する。
// 唯一のメンバーであるオーガナイザーが離脱した場合は家族を削除し、trueを返す。
func (s *Service) Leave(ctx context.Context, userID string) (bool, error) {
	familyDeleted, err := s.members.Leave(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrMembershipNotFound):
		return false, model.NewFamilyNotFoundError()
	case errors.Is(err, repository.ErrOrganizerHasMembers):
		return false, model.NewOrganizerMustTransferError()
	case err != nil:
		return false, fmt.Errorf("failed to leave family: %w", err)
	}

	slog.InfoContext(ctx, "member left family",
		slog.String("user_id", userID),
		slog.Bool("family_deleted", familyDeleted),
	)
	return familyDeleted, nil
}

// --- 招待（オーガナイザー側） ---

// CreateInvitation は招待を作成し、参加リンクをメール送信する。オーガナイザーのみ。
func (s *Service) CreateInvitation(ctx context.Context, userID, rawEmail string, role model.Role) (*model.Invitation, error) {
	caller, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleParent && role != model.RoleChild {
		return nil, model.NewValidationError("role", "招待できる役割はparentまたはchildです。")
	}
	email, err := auth.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, model.NewValidationError("email", "有効なメールアドレスを入力してください。")
	}

	isMember, err := s.members.ExistsByEmail(ctx, caller.FamilyID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if isMember {
		return nil, model.NewAlreadyMemberError()
	}

	now := s.now()
	pending, err := s.invitations.FindPending(ctx, caller.FamilyID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending invitation: %w", err)
	}
	if pending != nil {
		if !pending.IsExpiredAt(now) {
			return nil, model.NewInvitationExistsError()
		}
		// 期限切れのpendingは新しい招待の妨げにしない
		if err := s.expire(ctx, pending.ID, now); err != nil {
			return nil, err
		}
	}

	inv := &model.Invitation{
		ID:        uuid.New().String(),
		FamilyID:  caller.FamilyID,
		Email:     email,
		Role:      role,
		Token:     uuid.New().String(),
		Status:    model.InvitationPending,
		InvitedBy: userID,
		ExpiresAt: now.Add(s.cfg.InvitationTTL),
		CreatedAt: now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrPendingInvitationExists) {
			return nil, model.NewInvitationExistsError()
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.sendInvitation(ctx, inv)
	s.metrics.RecordInvitationEvent("created")
	slog.InfoContext(ctx, "invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("family_id", inv.FamilyID),
		slog.String("role", string(inv.Role)),
	)
	return inv, nil
}

// ListInvitations は所属家族の招待一覧を新しい順に返す。オーガナイザーのみ。
func (s *Service) ListInvitations(ctx context.Context, userID string) ([]*model.Invitation, error) {
	caller, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return nil, err
	}
	invs, err := s.invitations.ListByFamily(ctx, caller.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}

// RevokeInvitation はpendingの招待を取り消す。オーガナイザーのみ。
func (s *Service) RevokeInvitation(ctx context.Context, userID, invitationID string) error {
	caller, err := s.requireOrganizer(ctx, userID)
	if err != nil {
		return err
	}

	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return fmt.Errorf("failed to find invitation: %w", err)
	}
	if inv == nil || inv.FamilyID != caller.FamilyID {
		return model.NewInvitationNotFoundError()
	}
	if inv.Status != model.InvitationPending {
		return model.NewInvitationNotPendingError(inv.Status)
	}

	if err := s.invitations.UpdateStatus(ctx, inv.ID, model.InvitationRevoked, s.now()); err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			return s.notPending(ctx, inv.ID)
		}
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}

	s.metrics.RecordInvitationEvent("revoked")
	slog.InfoContext(ctx, "invitation revoked", slog.String("invitation_id", inv.ID))
	return nil
}

// --- 招待（招待された側） ---

// PreviewInvitation はトークンから招待内容を返す。状態の期限切れ判定は呼び出し側でEffectiveStatusを使用する。
func (s *Service) PreviewInvitation(ctx context.Context, token string) (*model.InvitationDetail, error) {
	detail, err := s.invitations.FindDetailByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	if detail == nil {
		return nil, model.NewInvitationNotFoundError()
	}
	return detail, nil
}

// AcceptInvitation は招待を承諾して家族に参加する。既に家族に所属している場合は参加できない。
func (s *Service) AcceptInvitation(ctx context.Context, userID, token string) (*Detail, error) {
	inv, err := s.respondable(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	current, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if current != nil {
		return nil, model.NewAlreadyInFamilyError()
	}

	now := s.now()
	member := s.newMember(inv, userID, now)
	if err := s.invitations.Accept(ctx, inv.ID, member, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrInvitationNotPending):
			return nil, s.notPending(ctx, inv.ID)
		case errors.Is(err, repository.ErrAlreadyInFamily):
			return nil, model.NewAlreadyInFamilyError()
		default:
			return nil, fmt.Errorf("failed to accept invitation: %w", err)
		}
	}

	s.metrics.RecordInvitationEvent("accepted")
	slog.InfoContext(ctx, "invitation accepted",
		slog.String("invitation_id", inv.ID),
		slog.String("family_id", inv.FamilyID),
		slog.String("user_id", userID),
	)
	return s.Get(ctx, userID)
}

// SwitchFamily は現在の家族を離脱して招待先の家族に参加する。
// 離脱・旧家族の削除・参加・招待の承諾は1トランザクションで行う。
func (s *Service) SwitchFamily(ctx context.Context, userID, token string) (*Detail, error) {
	inv, err := s.respondable(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	current, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if current == nil {
		return nil, model.NewNotInFamilyError()
	}
	if current.FamilyID == inv.FamilyID {
		return nil, model.NewAlreadyMemberError()
	}

	now := s.now()
	member := s.newMember(inv, userID, now)
	oldFamilyDeleted, err := s.invitations.Switch(ctx, inv.ID, current.FamilyID, member, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvitationNotPending):
			return nil, s.notPending(ctx, inv.ID)
		case errors.Is(err, repository.ErrOrganizerHasMembers):
			return nil, model.NewOrganizerMustTransferError()
		case errors.Is(err, repository.ErrMembershipNotFound):
			return nil, model.NewNotInFamilyError()
		case errors.Is(err, repository.ErrStateConflict), errors.Is(err, repository.ErrAlreadyInFamily):
			// 処理中に所属が変わった
			return nil, model.NewAlreadyInFamilyError()
		default:
			return nil, fmt.Errorf("failed to switch family: %w", err)
		}
	}

	s.metrics.RecordInvitationEvent("switched")
	slog.InfoContext(ctx, "family switched",
		slog.String("invitation_id", inv.ID),
		slog.String("old_family_id", current.FamilyID),
		slog.String("new_family_id", inv.FamilyID),
		slog.String("user_id", userID),
		slog.Bool("old_family_deleted", oldFamilyDeleted),
	)
	return s.Get(ctx, userID)
}

// DeclineInvitation は招待を辞退する。
func (s *Service) DeclineInvitation(ctx context.Context, userID, token string) error {
	inv, err := s.respondable(ctx, userID, token)
	if err != nil {
		return err
	}

	if err := s.invitations.UpdateStatus(ctx, inv.ID, model.InvitationDeclined, s.now()); err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			return s.notPending(ctx, inv.ID)
		}
		return fmt.Errorf("failed to decline invitation: %w", err)
	}

	s.metrics.RecordInvitationEvent("declined")
	slog.InfoContext(ctx, "invitation declined",
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", userID),
	)
	return nil
}

// respondable は招待に応答できるかを検証する。
// 検証順: 存在 → pending → 有効期限（期限切れならexpiredに更新） → メールアドレス一致。
func (s *Service) respondable(ctx context.Context, userID, token string) (*model.Invitation, error) {
	detail, err := s.PreviewInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	inv := &detail.Invitation

	if inv.Status != model.InvitationPending {
		return nil, model.NewInvitationNotPendingError(inv.Status)
	}

	now := s.now()
	if inv.IsExpiredAt(now) {
		if err := s.expire(ctx, inv.ID, now); err != nil {
			return nil, err
		}
		return nil, model.NewInvitationExpiredError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.Email != inv.Email {
		return nil, model.NewInvitationEmailMismatchError()
	}
	return inv, nil
}

// expire はpendingの招待をexpiredにする。既にpendingでなければ何もしない。
func (s *Service) expire(ctx context.Context, invitationID string, now time.Time) error {
	err := s.invitations.UpdateStatus(ctx, invitationID, model.InvitationExpired, now)
	if err != nil && !errors.Is(err, repository.ErrInvitationNotPending) {
		return fmt.Errorf("failed to expire invitation: %w", err)
	}
	return nil
}

// notPending は競合で状態が変わった招待の現在の状態でエラーを返す。
func (s *Service) notPending(ctx context.Context, invitationID string) error {
	status := model.InvitationStatus("unknown")
	if inv, err := s.invitations.FindByID(ctx, invitationID); err == nil && inv != nil {
		status = inv.Status
	}
	return model.NewInvitationNotPendingError(status)
}

func (s *Service) newMember(inv *model.Invitation, userID string, now time.Time) *model.FamilyMember {
	return &model.FamilyMember{
		ID:       uuid.New().String(),
		FamilyID: inv.FamilyID,
		UserID:   userID,
		Role:     inv.Role,
		JoinedAt: now,
	}
}

// sendInvitation は招待メールを送信する。送信失敗は招待の作成を取り消さない。
func (s *Service) sendInvitation(ctx context.Context, inv *model.Invitation) {
	familyName, inviterName := "", ""
	if f, err := s.families.FindByID(ctx, inv.FamilyID); err == nil && f != nil {
		familyName = f.Name
	}
	if u, err := s.users.FindByID(ctx, inv.InvitedBy); err == nil && u != nil {
		inviterName = u.Name
	}

	joinURL := fmt.Sprintf("%s/invitations/%s", s.cfg.BaseURL, inv.Token)
	msg := mail.InvitationMessage(inv.Email, familyName, inviterName, string(inv.Role), joinURL, inv.ExpiresAt)
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send invitation mail",
			slog.String("invitation_id", inv.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) requireMember(ctx context.Context, userID string) (*model.FamilyMember, error) {
	member, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if member == nil {
		return nil, model.NewFamilyNotFoundError()
	}
	return member, nil
}

func (s *Service) requireOrganizer(ctx context.Context, userID string) (*model.FamilyMember, error) {
	member, err := s.requireMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member.Role != model.RoleOrganizer {
		return nil, model.NewPermissionDeniedError("この操作はオーガナイザーのみ実行できます。")
	}
	return member, nil
}

func (s *Service) findFamily(ctx context.Context, familyID string) (*model.Family, error) {
	family, err := s.families.FindByID(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to find family: %w", err)
	}
	if family == nil {
		return nil, model.NewFamilyNotFoundError()
	}
	return family, nil
}

func (s *Service) listMembers(ctx context.Context, familyID string) ([]model.MemberWithUser, error) {
	members, err := s.members.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *Service) detail(ctx context.Context, family *model.Family) (*Detail, error) {
	members, err := s.listMembers(ctx, family.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Family: family, Members: members}, nil
}
