package model

import "time"

// Role は家族内でのメンバーの役割を表す。
type Role string

const (
	// RoleOrganizer はメンバー管理の権限を持つ役割。家族ごとに1人のみ。
	RoleOrganizer Role = "organizer"
	// RoleParent は保護者。プロジェクト・タスクの管理が可能。
	RoleParent Role = "parent"
	// RoleChild は子供。閲覧とコメント、自分に割り当てられたタスクのステータス更新のみ可能。
	RoleChild Role = "child"
)

// Valid は定義済みの役割かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleOrganizer, RoleParent, RoleChild:
		return true
	}
	return false
}

// IsManager はプロジェクト・スプリント・タスクの書き込み権限を持つかを返す。
func (r Role) IsManager() bool {
	return r == RoleOrganizer || r == RoleParent
}

// Family は家族（テナント）を表す。
type Family struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FamilyMember はユーザーと家族の所属関係を表す。
// 1ユーザーは最大1つの家族にのみ所属する。
type FamilyMember struct {
	ID       string
	FamilyID string
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// MemberWithUser はメンバー情報とユーザーの表示名・メールアドレスを結合したモデル。
type MemberWithUser struct {
	FamilyMember
	UserName  string
	UserEmail string
}

// InvitationStatus は招待の状態を表す。
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation は家族への招待を表す。
// Tokenは招待リンクに含まれるUUID v4。
type Invitation struct {
	ID          string
	FamilyID    string
	Email       string
	Role        Role
	Token       string
	Status      InvitationStatus
	InvitedBy   string
	ExpiresAt   time.Time
	RespondedAt *time.Time
	CreatedAt   time.Time
}

// IsExpiredAt は指定時刻時点で有効期限を過ぎているかを返す。
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// EffectiveStatus は有効期限を考慮した状態を返す。
// pendingのまま期限を過ぎた招待はexpiredとして扱う。
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.IsExpiredAt(now) {
		return InvitationExpired
	}
	return i.Status
}

// InvitationDetail は招待と家族名・招待者名を結合したモデル。
// 招待プレビュー画面で使用する。
type InvitationDetail struct {
	Invitation
	FamilyName  string
	InviterName string
}
