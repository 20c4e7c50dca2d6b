package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
)

// PostgresInvitationRepo はPostgreSQLを使用した招待リポジトリ。
type PostgresInvitationRepo struct {
	db *sql.DB
}

// NewPostgresInvitationRepo はPostgresInvitationRepoを生成する。
func NewPostgresInvitationRepo(db *sql.DB) *PostgresInvitationRepo {
	return &PostgresInvitationRepo{db: db}
}

const invitationColumns = `i.id, i.family_id, i.email, i.role, i.token, i.status, i.invited_by, i.expires_at, i.responded_at, i.created_at`

// scanInvitation はinvitationColumnsの順にスキャンする。extraは後続の追加カラム。
func scanInvitation(row interface{ Scan(...any) error }, extra ...any) (*model.Invitation, error) {
	inv := &model.Invitation{}
	var role, status string
	var invitedBy sql.NullString
	var respondedAt sql.NullTime

	dest := []any{
		&inv.ID, &inv.FamilyID, &inv.Email, &role, &inv.Token, &status,
		&invitedBy, &inv.ExpiresAt, &respondedAt, &inv.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	inv.Role = model.Role(role)
	inv.Status = model.InvitationStatus(status)
	inv.InvitedBy = nullStringValue(invitedBy)
	inv.RespondedAt = nullTimePtr(respondedAt)
	return inv, nil
}

// Create は招待を作成する。
func (r *PostgresInvitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, family_id, email, role, token, status, invited_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.FamilyID, inv.Email, string(inv.Role), inv.Token, string(inv.Status),
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != err {
			return translated
		}
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// FindByID は指定IDの招待を取得する。見つからない場合はnilを返す。
func (r *PostgresInvitationRepo) FindByID(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations i WHERE i.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, nil
}

// FindDetailByToken はトークンで招待を家族名・招待者名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresInvitationRepo) FindDetailByToken(ctx context.Context, token string) (*model.InvitationDetail, error) {
	var familyName string
	var inviterName sql.NullString
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+`, f.name, u.name
		 FROM invitations i
		 JOIN families f ON f.id = i.family_id
		 LEFT JOIN users u ON u.id = i.invited_by
		 WHERE i.token = $1`,
		token,
	), &familyName, &inviterName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation by token: %w", err)
	}
	return &model.InvitationDetail{
		Invitation:  *inv,
		FamilyName:  familyName,
		InviterName: nullStringValue(inviterName),
	}, nil
}

// FindPending は家族・メールアドレスに対する保留中の招待を取得する。見つからない場合はnilを返す。
func (r *PostgresInvitationRepo) FindPending(ctx context.Context, familyID, email string) (*model.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations i
		 WHERE i.family_id = $1 AND lower(i.email) = lower($2) AND i.status = 'pending'`,
		familyID, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending invitation: %w", err)
	}
	return inv, nil
}

// ListByFamily は家族の招待一覧を作成日時の降順で返す。
func (r *PostgresInvitationRepo) ListByFamily(ctx context.Context, familyID string) ([]*model.Invitation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations i
		 WHERE i.family_id = $1
		 ORDER BY i.created_at DESC, i.id`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return invitations, nil
}

// UpdateStatus はpending状態の招待の状態を変更する。
func (r *PostgresInvitationRepo) UpdateStatus(ctx context.Context, id string, status model.InvitationStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = $2, responded_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	return requireAffected(result, ErrInvitationNotPending)
}

// Accept は招待を承諾し、メンバーシップを作成する。
func (r *PostgresInvitationRepo) Accept(ctx context.Context, invitationID string, member *model.FamilyMember, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockPendingInvitation(ctx, tx, invitationID); err != nil {
		return err
	}

	if err := insertMember(ctx, tx, member); err != nil {
		return err
	}

	if err := markAccepted(ctx, tx, invitationID, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Switch は現在の所属家族から招待先の家族へ同一トランザクションで切り替える。
func (r *PostgresInvitationRepo) Switch(ctx context.Context, invitationID, oldFamilyID string, member *model.FamilyMember, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockPendingInvitation(ctx, tx, invitationID); err != nil {
		return false, err
	}

	oldFamilyDeleted, err := leaveFamily(ctx, tx, member.UserID, oldFamilyID)
	if err != nil {
		return false, err
	}

	if err := insertMember(ctx, tx, member); err != nil {
		return false, err
	}

	if err := markAccepted(ctx, tx, invitationID, at); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return oldFamilyDeleted, nil
}

// ExpirePending は有効期限を過ぎたpending招待をexpiredに更新し、件数を返す。
func (r *PostgresInvitationRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'expired'
		 WHERE status = 'pending' AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// lockPendingInvitation は招待行をFOR UPDATEでロックし、pendingであることを確認する。
// 同一招待に対する同時承諾はここで直列化される。
func lockPendingInvitation(ctx context.Context, tx *sql.Tx, invitationID string) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM invitations WHERE id = $1 FOR UPDATE`,
		invitationID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrInvitationNotPending
	}
	if err != nil {
		return fmt.Errorf("failed to lock invitation: %w", err)
	}
	if model.InvitationStatus(status) != model.InvitationPending {
		return ErrInvitationNotPending
	}
	return nil
}

func markAccepted(ctx context.Context, tx *sql.Tx, invitationID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE invitations SET status = 'accepted', responded_at = $2 WHERE id = $1`,
		invitationID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	return nil
}

// compile-time interface check
var _ InvitationRepository = (*PostgresInvitationRepo)(nil)
