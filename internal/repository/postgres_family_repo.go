package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
)

// PostgresFamilyRepo はPostgreSQLを使用した家族リポジトリ。
type PostgresFamilyRepo struct {
	db *sql.DB
}

// NewPostgresFamilyRepo はPostgresFamilyRepoを生成する。
func NewPostgresFamilyRepo(db *sql.DB) *PostgresFamilyRepo {
	return &PostgresFamilyRepo{db: db}
}

// FindByID は指定IDの家族を取得する。見つからない場合はnilを返す。
func (r *PostgresFamilyRepo) FindByID(ctx context.Context, id string) (*model.Family, error) {
	family := &model.Family{}
	var createdBy sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at FROM families WHERE id = $1`,
		id,
	).Scan(&family.ID, &family.Name, &createdBy, &family.CreatedAt, &family.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find family by ID: %w", err)
	}
	family.CreatedBy = nullStringValue(createdBy)
	return family, nil
}

// CreateWithOrganizer は家族と作成者のオーガナイザーメンバーシップを同一トランザクションで作成する。
func (r *PostgresFamilyRepo) CreateWithOrganizer(ctx context.Context, family *model.Family, organizer *model.FamilyMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO families (id, name, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		family.ID, family.Name, family.CreatedBy, family.CreatedAt, family.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}

	if err := insertMember(ctx, tx, organizer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateName は家族名を更新する。
func (r *PostgresFamilyRepo) UpdateName(ctx context.Context, id, name string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE families SET name = $2, updated_at = $3 WHERE id = $1`,
		id, name, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update family name: %w", err)
	}
	return requireAffected(result, fmt.Errorf("family not found: %s", id))
}

// DeleteByID は家族を削除する。メンバー、招待、プロジェクトはCASCADE削除される。
func (r *PostgresFamilyRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM families WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return requireAffected(result, fmt.Errorf("family not found: %s", id))
}

// PostgresMemberRepo はPostgreSQLを使用したメンバーシップリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByUserID はユーザーの所属メンバーシップを取得する。未所属の場合はnilを返す。
func (r *PostgresMemberRepo) FindByUserID(ctx context.Context, userID string) (*model.FamilyMember, error) {
	m := &model.FamilyMember{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, family_id, user_id, role, joined_at FROM family_members WHERE user_id = $1`,
		userID,
	).Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	m.Role = model.Role(role)
	return m, nil
}

// ListByFamily は家族のメンバー一覧をユーザー情報付きで返す。
func (r *PostgresMemberRepo) ListByFamily(ctx context.Context, familyID string) ([]model.MemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.family_id, m.user_id, m.role, m.joined_at, u.name, u.email
		 FROM family_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.family_id = $1
		 ORDER BY CASE m.role WHEN 'organizer' THEN 0 WHEN 'parent' THEN 1 ELSE 2 END, m.joined_at, m.id`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []model.MemberWithUser
	for rows.Next() {
		var m model.MemberWithUser
		var role string
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &role, &m.JoinedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = model.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// ExistsByEmail は指定メールアドレスのユーザーが家族のメンバーかどうかを返す。
func (r *PostgresMemberRepo) ExistsByEmail(ctx context.Context, familyID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM family_members m JOIN users u ON u.id = m.user_id
			WHERE m.family_id = $1 AND lower(u.email) = lower($2)
		)`,
		familyID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member email: %w", err)
	}
	return exists, nil
}

// UpdateRole はorganizer以外の役割へ変更する。
// オーガナイザー行は対象外とし、移譲はTransferOrganizerで行う。
func (r *PostgresMemberRepo) UpdateRole(ctx context.Context, familyID, userID string, role model.Role) error {
	if role == model.RoleOrganizer {
		return fmt.Errorf("use TransferOrganizer to assign organizer role")
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE family_members SET role = $3
		 WHERE family_id = $1 AND user_id = $2 AND role <> 'organizer'`,
		familyID, userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireAffected(result, ErrMembershipNotFound)
}

// TransferOrganizer はオーガナイザー権限を同一トランザクションで移譲する。
// 部分ユニークインデックスを満たすため、先に降格してから昇格する。
func (r *PostgresMemberRepo) TransferOrganizer(ctx context.Context, familyID, fromUserID, toUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE family_members SET role = 'parent'
		 WHERE family_id = $1 AND user_id = $2 AND role = 'organizer'`,
		familyID, fromUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to demote organizer: %w", err)
	}
	if err := requireAffected(result, ErrStateConflict); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE family_members SET role = 'organizer'
		 WHERE family_id = $1 AND user_id = $2`,
		familyID, toUserID,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != err {
			return translated
		}
		return fmt.Errorf("failed to promote member: %w", err)
	}
	if err := requireAffected(result, ErrMembershipNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Remove は家族からメンバーを削除する。
func (r *PostgresMemberRepo) Remove(ctx context.Context, familyID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE family_id = $1 AND user_id = $2`,
		familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return requireAffected(result, ErrMembershipNotFound)
}

// Leave はユーザーを所属家族から離脱させる。
func (r *PostgresMemberRepo) Leave(ctx context.Context, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	familyDeleted, err := leaveFamily(ctx, tx, userID, "")
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return familyDeleted, nil
}

// leaveFamily はトランザクション内でメンバーシップを削除する。
// expectedFamilyIDが空でない場合、現在の所属がその家族であることを要求する。
// 家族が空になった場合は家族も削除する。
func leaveFamily(ctx context.Context, tx *sql.Tx, userID, expectedFamilyID string) (bool, error) {
	var memberID, familyID, role string
	err := tx.QueryRowContext(ctx,
		`SELECT id, family_id, role FROM family_members WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&memberID, &familyID, &role)
	if err == sql.ErrNoRows {
		return false, ErrMembershipNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock membership: %w", err)
	}
	if expectedFamilyID != "" && familyID != expectedFamilyID {
		return false, ErrStateConflict
	}

	var others int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM family_members WHERE family_id = $1 AND user_id <> $2`,
		familyID, userID,
	).Scan(&others)
	if err != nil {
		return false, fmt.Errorf("failed to count members: %w", err)
	}

	if model.Role(role) == model.RoleOrganizer && others > 0 {
		return false, ErrOrganizerHasMembers
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM family_members WHERE id = $1`, memberID); err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}

	if others == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM families WHERE id = $1`, familyID); err != nil {
			return false, fmt.Errorf("failed to delete empty family: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// insertMember はトランザクション内でメンバーシップを作成する。
// user_idのユニーク制約違反はErrAlreadyInFamilyに変換する。
func insertMember(ctx context.Context, tx *sql.Tx, m *model.FamilyMember) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO family_members (id, family_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.FamilyID, m.UserID, string(m.Role), m.JoinedAt,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != err {
			return translated
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ FamilyRepository = (*PostgresFamilyRepo)(nil)
	_ MemberRepository = (*PostgresMemberRepo)(nil)
)
