package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/familyhub/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `t.id, t.project_id, t.sprint_id, t.title, t.description, t.status, t.priority,
	t.assignee_id, t.due_date, t.created_by, t.created_at, t.updated_at`

// taskOrdering はorderingパラメータで指定可能な並び順。
// priorityは文字列順ではなく low < medium < high で並べる。
var taskOrdering = map[string]string{
	"due_date":   "t.due_date",
	"priority":   "CASE t.priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
	"created_at": "t.created_at",
}

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	t := &model.Task{}
	var sprintID, assigneeID, createdBy sql.NullString
	var dueDate sql.NullTime
	var status, priority string
	if err := row.Scan(
		&t.ID, &t.ProjectID, &sprintID, &t.Title, &t.Description, &status, &priority,
		&assigneeID, &dueDate, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.SprintID = nullStringPtr(sprintID)
	t.AssigneeID = nullStringPtr(assigneeID)
	t.DueDate = nullTimePtr(dueDate)
	t.CreatedBy = nullStringValue(createdBy)
	t.Status = model.TaskStatus(status)
	t.Priority = model.TaskPriority(priority)
	return t, nil
}

// dueDateArg はdue_dateカラムに渡す値を返す。nilの場合はNULL。
func dueDateArg(t *model.Task) any {
	if t.DueDate == nil {
		return nil
	}
	return t.DueDate.Format(dateLayout)
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, t *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, sprint_id, title, description, status, priority,
		                    assignee_id, due_date, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.ProjectID, t.SprintID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssigneeID, dueDateArg(t), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByID は家族内のタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, familyID, id string) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 JOIN projects p ON p.id = t.project_id
		 WHERE t.id = $1 AND p.family_id = $2`,
		id, familyID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return t, nil
}

// List は絞り込み条件とページ指定でプロジェクトのタスク一覧と総件数を返す。
func (r *PostgresTaskRepo) List(ctx context.Context, projectID string, filter model.TaskFilter, page model.Page) ([]*model.Task, int, error) {
	var where whereBuilder
	where.add("t.project_id = ?", projectID)
	if filter.Status != "" {
		where.add("t.status = ?", string(filter.Status))
	}
	if filter.Priority != "" {
		where.add("t.priority = ?", string(filter.Priority))
	}
	if filter.AssigneeID != "" {
		where.add("t.assignee_id = ?", filter.AssigneeID)
	}
	if filter.Backlog {
		where.addRaw("t.sprint_id IS NULL")
	} else if filter.SprintID != "" {
		where.add("t.sprint_id = ?", filter.SprintID)
	}
	if filter.Search != "" {
		where.add(`(t.title ILIKE ? ESCAPE '\' OR t.description ILIKE ? ESCAPE '\')`, escapeLike(filter.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks t`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t` + where.sql() +
		orderBy(filter.Ordering, taskOrdering, "t.created_at DESC") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", where.next(), where.next()+1)
	args := append(where.args, page.Size, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, total, nil
}

// Update はタスクを上書き更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, t *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET sprint_id = $2, title = $3, description = $4, status = $5, priority = $6,
		                  assignee_id = $7, due_date = $8, updated_at = $9
		 WHERE id = $1`,
		t.ID, t.SprintID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssigneeID, dueDateArg(t), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result, fmt.Errorf("task not found: %s", t.ID))
}

// Delete はタスクを削除する。コメントはCASCADE削除される。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result, fmt.Errorf("task not found: %s", id))
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
