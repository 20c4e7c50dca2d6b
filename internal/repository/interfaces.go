// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRegistration は未認証ユーザーの名前とパスワードハッシュを上書きする。
	// 認証済みユーザーは更新せずErrStateConflictを返す。
	UpdateRegistration(ctx context.Context, user *model.User) error

	// MarkVerified はユーザーをメール認証済みにする。
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdateName は表示名を更新する。
	UpdateName(ctx context.Context, id, name string, at time.Time) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error

	// Withdraw は所属家族からの離脱とユーザー削除を同一トランザクションで行う。
	// 他のメンバーがいるオーガナイザーの場合はErrOrganizerHasMembersを返し、何も削除しない。
	// 唯一のメンバーだった家族も削除し、その場合familyDeletedはtrueになる。
	Withdraw(ctx context.Context, id string) (familyDeleted bool, err error)
}

// FamilyRepository は家族とメンバーシップの永続化インターフェース。
type FamilyRepository interface {
	// FindByID は指定IDの家族を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Family, error)

	// CreateWithOrganizer は家族と作成者のオーガナイザーメンバーシップを同一トランザクションで作成する。
	// 作成者が既に所属している場合はErrAlreadyInFamilyを返す。
	CreateWithOrganizer(ctx context.Context, family *model.Family, organizer *model.FamilyMember) error

	// UpdateName は家族名を更新する。
	UpdateName(ctx context.Context, id, name string, at time.Time) error

	// DeleteByID は家族を削除する。メンバー、招待、プロジェクトはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// MemberRepository はメンバーシップの永続化インターフェース。
type MemberRepository interface {
	// FindByUserID はユーザーの所属メンバーシップを取得する。未所属の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.FamilyMember, error)

	// ListByFamily は家族のメンバー一覧をユーザー情報付きで返す。
	// オーガナイザー、保護者、子供の順、同じ役割内は参加日時順。
	ListByFamily(ctx context.Context, familyID string) ([]model.MemberWithUser, error)

	// ExistsByEmail は指定メールアドレスのユーザーが家族のメンバーかどうかを返す。
	ExistsByEmail(ctx context.Context, familyID, email string) (bool, error)

	// UpdateRole はorganizer以外の役割へ変更する。対象が存在しない場合はErrMembershipNotFoundを返す。
	UpdateRole(ctx context.Context, familyID, userID string, role model.Role) error

	// TransferOrganizer はオーガナイザー権限を同一トランザクションで移譲する。
	// fromUserIDはparentに降格し、toUserIDをorganizerに昇格させる。
	TransferOrganizer(ctx context.Context, familyID, fromUserID, toUserID string) error

	// Remove は家族からメンバーを削除する。対象が存在しない場合はErrMembershipNotFoundを返す。
	Remove(ctx context.Context, familyID, userID string) error

	// Leave はユーザーを所属家族から離脱させる。
	// 唯一のメンバーであるオーガナイザーの場合は家族ごと削除し、familyDeletedにtrueを返す。
	// 他のメンバーがいるオーガナイザーの場合はErrOrganizerHasMembersを返す。
	Leave(ctx context.Context, userID string) (familyDeleted bool, err error)
}

// InvitationRepository は招待の永続化インターフェース。
type InvitationRepository interface {
	// Create は招待を作成する。保留中招待が重複する場合はErrPendingInvitationExistsを返す。
	Create(ctx context.Context, invitation *model.Invitation) error

	// FindByID は指定IDの招待を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Invitation, error)

	// FindDetailByToken はトークンで招待を家族名・招待者名付きで取得する。見つからない場合はnilを返す。
	FindDetailByToken(ctx context.Context, token string) (*model.InvitationDetail, error)

	// FindPending は家族・メールアドレスに対する保留中の招待を取得する。見つからない場合はnilを返す。
	FindPending(ctx context.Context, familyID, email string) (*model.Invitation, error)

	// ListByFamily は家族の招待一覧を作成日時の降順で返す。
	ListByFamily(ctx context.Context, familyID string) ([]*model.Invitation, error)

	// UpdateStatus はpending状態の招待の状態を変更する。
	// pendingでなかった場合はErrInvitationNotPendingを返す。
	UpdateStatus(ctx context.Context, id string, status model.InvitationStatus, at time.Time) error

	// Accept は招待を承諾し、メンバーシップを作成する。
	// 招待行をFOR UPDATEでロックし、pendingでなければErrInvitationNotPendingを返す。
	// ユーザーが既に所属している場合はErrAlreadyInFamilyを返す。
	Accept(ctx context.Context, invitationID string, member *model.FamilyMember, at time.Time) error

	// Switch は現在の所属家族から招待先の家族へ同一トランザクションで切り替える。
	// 旧メンバーシップを削除し、旧家族が空になった場合は旧家族も削除する。
	// 旧家族でオーガナイザーかつ他のメンバーがいる場合はErrOrganizerHasMembersを返す。
	Switch(ctx context.Context, invitationID, oldFamilyID string, member *model.FamilyMember, at time.Time) (oldFamilyDeleted bool, err error)

	// ExpirePending は有効期限を過ぎたpending招待をexpiredに更新し、件数を返す。
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// ProjectRepository はプロジェクトの永続化インターフェース。
// 取得系は家族IDでスコープし、他家族のプロジェクトはnilとして扱う。
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	// FindByID は家族内のプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, familyID, id string) (*model.Project, error)
	// List は絞り込み条件とページ指定でプロジェクト一覧と総件数を返す。
	List(ctx context.Context, familyID string, filter model.ProjectFilter, page model.Page) ([]*model.Project, int, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error
}

// SprintRepository はスプリントの永続化インターフェース。
type SprintRepository interface {
	Create(ctx context.Context, sprint *model.Sprint) error
	// FindByID は家族内のスプリントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, familyID, id string) (*model.Sprint, error)
	// FindActive はプロジェクトの実行中スプリントを取得する。存在しない場合はnilを返す。
	FindActive(ctx context.Context, projectID string) (*model.Sprint, error)
	// ListByProject はプロジェクトのスプリント一覧を開始日順で返す。
	ListByProject(ctx context.Context, projectID string, page model.Page) ([]*model.Sprint, int, error)
	Update(ctx context.Context, sprint *model.Sprint) error
	Delete(ctx context.Context, id string) error

	// Start はplannedのスプリントをactiveにする。
	// 状態がplannedでない場合はErrStateConflict、他に実行中スプリントがある場合はErrSprintAlreadyActiveを返す。
	Start(ctx context.Context, id string, at time.Time) error

	// Complete はactiveのスプリントをcompletedにし、未完了タスクをバックログに戻す。
	// 戻したタスク数を返す。状態がactiveでない場合はErrStateConflictを返す。
	Complete(ctx context.Context, id string, at time.Time) (movedTasks int64, err error)
}

// TaskRepository はタスクの永続化インターフェース。
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	// FindByID は家族内のタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, familyID, id string) (*model.Task, error)
	// List は絞り込み条件とページ指定でプロジェクトのタスク一覧と総件数を返す。
	List(ctx context.Context, projectID string, filter model.TaskFilter, page model.Page) ([]*model.Task, int, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id string) error
}

// CommentRepository はコメントの永続化インターフェース。
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	// FindByID は家族内のコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, familyID, id string) (*model.Comment, error)
	// ListByTask はタスクのコメント一覧を作成日時順で返す。
	ListByTask(ctx context.Context, taskID string, page model.Page) ([]*model.Comment, int, error)
	Update(ctx context.Context, comment *model.Comment) error
	Delete(ctx context.Context, id string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
