package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
)

// PostgresSprintRepo はPostgreSQLを使用したスプリントリポジトリ。
type PostgresSprintRepo struct {
	db *sql.DB
}

// NewPostgresSprintRepo はPostgresSprintRepoを生成する。
func NewPostgresSprintRepo(db *sql.DB) *PostgresSprintRepo {
	return &PostgresSprintRepo{db: db}
}

const sprintColumns = `s.id, s.project_id, s.name, s.goal, s.start_date, s.end_date, s.status, s.created_at, s.updated_at`

// dateLayout はDATE型カラムに渡す日付フォーマット。
const dateLayout = "2006-01-02"

func scanSprint(row interface{ Scan(...any) error }) (*model.Sprint, error) {
	s := &model.Sprint{}
	var status string
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Goal, &s.StartDate, &s.EndDate, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SprintStatus(status)
	return s, nil
}

// Create はスプリントを作成する。
func (r *PostgresSprintRepo) Create(ctx context.Context, s *model.Sprint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sprints (id, project_id, name, goal, start_date, end_date, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.ProjectID, s.Name, s.Goal, s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout),
		string(s.Status), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sprint: %w", err)
	}
	return nil
}

// FindByID は家族内のスプリントを取得する。見つからない場合はnilを返す。
func (r *PostgresSprintRepo) FindByID(ctx context.Context, familyID, id string) (*model.Sprint, error) {
	s, err := scanSprint(r.db.QueryRowContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints s
		 JOIN projects p ON p.id = s.project_id
		 WHERE s.id = $1 AND p.family_id = $2`,
		id, familyID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sprint: %w", err)
	}
	return s, nil
}

// FindActive はプロジェクトの実行中スプリントを取得する。存在しない場合はnilを返す。
func (r *PostgresSprintRepo) FindActive(ctx context.Context, projectID string) (*model.Sprint, error) {
	s, err := scanSprint(r.db.QueryRowContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints s WHERE s.project_id = $1 AND s.status = 'active'`,
		projectID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active sprint: %w", err)
	}
	return s, nil
}

// ListByProject はプロジェクトのスプリント一覧を開始日順で返す。
func (r *PostgresSprintRepo) ListByProject(ctx context.Context, projectID string, page model.Page) ([]*model.Sprint, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sprints WHERE project_id = $1`, projectID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sprints: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints s
		 WHERE s.project_id = $1
		 ORDER BY s.start_date, s.id
		 LIMIT $2 OFFSET $3`,
		projectID, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []*model.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sprints = append(sprints, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sprints: %w", err)
	}
	return sprints, total, nil
}

// Update はスプリントの名前・目標・期間を更新する。状態はStart/Completeで変更する。
func (r *PostgresSprintRepo) Update(ctx context.Context, s *model.Sprint) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sprints SET name = $2, goal = $3, start_date = $4, end_date = $5, updated_at = $6 WHERE id = $1`,
		s.ID, s.Name, s.Goal, s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update sprint: %w", err)
	}
	return requireAffected(result, fmt.Errorf("sprint not found: %s", s.ID))
}

// Delete はスプリントを削除する。所属タスクのsprint_idはNULLになる。
func (r *PostgresSprintRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sprints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sprint: %w", err)
	}
	return requireAffected(result, fmt.Errorf("sprint not found: %s", id))
}

// Start はplannedのスプリントをactiveにする。
// 実行中スプリントの一意性は部分ユニークインデックスで保証する。
func (r *PostgresSprintRepo) Start(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sprints SET status = 'active', updated_at = $2 WHERE id = $1 AND status = 'planned'`,
		id, at,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != err {
			return translated
		}
		return fmt.Errorf("failed to start sprint: %w", err)
	}
	return requireAffected(result, ErrStateConflict)
}

// Complete はactiveのスプリントをcompletedにし、未完了タスクをバックログに戻す。
func (r *PostgresSprintRepo) Complete(ctx context.Context, id string, at time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE sprints SET status = 'completed', updated_at = $2 WHERE id = $1 AND status = 'active'`,
		id, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to complete sprint: %w", err)
	}
	if err := requireAffected(result, ErrStateConflict); err != nil {
		return 0, err
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE tasks SET sprint_id = NULL, updated_at = $2 WHERE sprint_id = $1 AND status <> 'done'`,
		id, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to move unfinished tasks to backlog: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return moved, nil
}

// compile-time interface check
var _ SprintRepository = (*PostgresSprintRepo)(nil)
