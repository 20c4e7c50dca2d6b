package repository

import (
	"errors"

	"github.com/lib/pq"
)

// リポジトリ層が返すセンチネルエラー。
// サービス層でmodel.APIErrorに変換する。
var (
	// ErrAlreadyInFamily はユーザーが既に別の家族に所属している場合に返される。
	// family_members.user_id のユニーク制約違反もこのエラーに変換される。
	ErrAlreadyInFamily = errors.New("user already belongs to a family")

	// ErrInvitationNotPending はトランザクション内で招待の状態がpendingでなかった場合に返される。
	ErrInvitationNotPending = errors.New("invitation is not pending")

	// ErrOrganizerHasMembers は他のメンバーがいる家族からオーガナイザーが抜けようとした場合に返される。
	ErrOrganizerHasMembers = errors.New("organizer cannot leave while other members remain")

	// ErrMembershipNotFound は更新・削除対象のメンバーシップが存在しない場合に返される。
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrSprintAlreadyActive は同一プロジェクトに実行中スプリントが存在する場合に返される。
	ErrSprintAlreadyActive = errors.New("another sprint is already active")

	// ErrStateConflict は状態遷移の前提条件が満たされなかった場合に返される。
	ErrStateConflict = errors.New("state transition precondition failed")

	// ErrPendingInvitationExists は保留中招待の部分ユニーク制約違反時に返される。
	ErrPendingInvitationExists = errors.New("pending invitation already exists")

	// ErrEmailTaken はusers.emailのユニークインデックス（lower(email)）違反時に返される。
	ErrEmailTaken = errors.New("email already registered")
)

// PostgreSQLのエラーコード
const pgUniqueViolation = "23505"

// 制約・ユニークインデックス名（migrations/000001_init.up.sql と一致させること）
const (
	constraintUsersEmail       = "users_email_key"
	constraintMembersUser      = "family_members_user_id_key"
	constraintOneOrganizer     = "idx_family_members_one_organizer"
	constraintOnePendingInvite = "idx_invitations_one_pending"
	constraintOneActiveSprint  = "idx_sprints_one_active"
)

// IsUniqueViolation はerrがPostgreSQLのユニーク制約違反かどうかを返す。
// constraintが空でない場合は制約名も一致する必要がある。
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// translateUniqueViolation は既知のユニーク制約違反をセンチネルエラーに変換する。
// 該当しない場合はerrをそのまま返す。
func translateUniqueViolation(err error) error {
	switch {
	case IsUniqueViolation(err, constraintMembersUser):
		return ErrAlreadyInFamily
	case IsUniqueViolation(err, constraintOnePendingInvite):
		return ErrPendingInvitationExists
	case IsUniqueViolation(err, constraintOneActiveSprint):
		return ErrSprintAlreadyActive
	case IsUniqueViolation(err, constraintUsersEmail):
		return ErrEmailTaken
	case IsUniqueViolation(err, constraintOneOrganizer):
		return ErrStateConflict
	}
	return err
}
