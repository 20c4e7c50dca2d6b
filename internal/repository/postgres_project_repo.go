package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/familyhub/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, family_id, name, description, status, created_by, created_at, updated_at`

// projectOrdering はorderingパラメータで指定可能な並び順。
var projectOrdering = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	var status string
	var createdBy sql.NullString
	if err := row.Scan(&p.ID, &p.FamilyID, &p.Name, &p.Description, &status, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	p.CreatedBy = nullStringValue(createdBy)
	return p, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.FamilyID, p.Name, p.Description, string(p.Status), p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// FindByID は家族内のプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, familyID, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND family_id = $2`,
		id, familyID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return p, nil
}

// List は絞り込み条件とページ指定でプロジェクト一覧と総件数を返す。
func (r *PostgresProjectRepo) List(ctx context.Context, familyID string, filter model.ProjectFilter, page model.Page) ([]*model.Project, int, error) {
	var where whereBuilder
	where.add("family_id = ?", familyID)
	if filter.Status != "" {
		where.add("status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		where.add(`name ILIKE ? ESCAPE '\'`, escapeLike(filter.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM projects`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where.sql() +
		orderBy(filter.Ordering, projectOrdering, "created_at DESC") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", where.next(), where.next()+1)
	args := append(where.args, page.Size, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, total, nil
}

// Update はプロジェクトの名前・説明・状態を更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, p *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = $2, description = $3, status = $4, updated_at = $5 WHERE id = $1`,
		p.ID, p.Name, p.Description, string(p.Status), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(result, fmt.Errorf("project not found: %s", p.ID))
}

// Delete はプロジェクトを削除する。スプリント、タスク、コメントはCASCADE削除される。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(result, fmt.Errorf("project not found: %s", id))
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
