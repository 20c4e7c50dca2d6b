package project

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/model"
)

// AssigneeMe はタスク一覧の担当者フィルタで呼び出し元自身を指す値。
const AssigneeMe = "me"

// TaskInput はタスク作成の入力。Status/Priorityが空の場合はtodo/medium。
type TaskInput struct {
	Title       string
	Description string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	AssigneeID  *string
	SprintID    *string
	DueDate     *time.Time
}

// TaskPatch はタスク部分更新の入力。
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *model.TaskStatus
	Priority    *model.TaskPriority
	AssigneeID  Nullable[string]
	SprintID    Nullable[string]
	DueDate     Nullable[time.Time]
}

// statusOnly はstatus以外のフィールドが指定されていないかを返す。
func (p TaskPatch) statusOnly() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		!p.AssigneeID.Set && !p.SprintID.Set && !p.DueDate.Set
}

func (s *Service) findTask(ctx context.Context, familyID, taskID string) (*model.Task, error) {
	t, err := s.tasks.FindByID(ctx, familyID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// checkAssignee は担当者が同じ家族のメンバーであることを確認する。
func (s *Service) checkAssignee(ctx context.Context, familyID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	m, err := s.members.FindByUserID(ctx, *assigneeID)
	if err != nil {
		return fmt.Errorf("failed to find assignee membership: %w", err)
	}
	if m == nil || m.FamilyID != familyID {
		return model.NewValidationError("assignee_id", "担当者は家族のメンバーから選択してください。")
	}
	return nil
}

// checkSprint はスプリントがタスクと同じプロジェクトに属することを確認する。
func (s *Service) checkSprint(ctx context.Context, familyID, projectID string, sprintID *string) error {
	if sprintID == nil {
		return nil
	}
	sp, err := s.sprints.FindByID(ctx, familyID, *sprintID)
	if err != nil {
		return fmt.Errorf("failed to find sprint: %w", err)
	}
	if sp == nil || sp.ProjectID != projectID {
		return model.NewValidationError("sprint_id", "スプリントは同じプロジェクトから選択してください。")
	}
	return nil
}

// ListTasks はプロジェクトのタスク一覧を返す。担当者フィルタの "me" は呼び出し元に置き換える。
func (s *Service) ListTasks(ctx context.Context, userID, projectID string, filter model.TaskFilter, page model.Page) (*PageResult[*model.Task], error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return nil, err
	}

	v := &model.ValidationError{}
	if filter.Status != "" && !filter.Status.Valid() {
		v.Add("status", "無効な状態です。")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		v.Add("priority", "無効な優先度です。")
	}
	if v.HasErrors() {
		return nil, v
	}
	if filter.AssigneeID == AssigneeMe {
		filter.AssigneeID = userID
	}

	items, count, err := s.tasks.List(ctx, p.ID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, err
	}
	return &PageResult[*model.Task]{Items: items, Count: count}, nil
}

// CreateTask はタスクを作成する。オーガナイザーと保護者のみ。
func (s *Service) CreateTask(ctx context.Context, userID, projectID string, in TaskInput) (*model.Task, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.TaskTodo
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	v := &model.ValidationError{}
	if !status.Valid() {
		v.Add("status", "無効な状態です。")
	}
	if !priority.Valid() {
		v.Add("priority", "無効な優先度です。")
	}
	if v.HasErrors() {
		return nil, v
	}
	if err := s.checkAssignee(ctx, member.FamilyID, in.AssigneeID); err != nil {
		return nil, err
	}
	if err := s.checkSprint(ctx, member.FamilyID, p.ID, in.SprintID); err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Task{
		ID:          uuid.New().String(),
		ProjectID:   p.ID,
		SprintID:    in.SprintID,
		Title:       trimmed(in.Title),
		Description: s.sanitize(in.Description),
		Status:      status,
		Priority:    priority,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.InfoContext(ctx, "task created",
		slog.String("task_id", t.ID),
		slog.String("project_id", p.ID),
	)
	return t, nil
}

// GetTask はタスクを返す。
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.findTask(ctx, member.FamilyID, taskID)
}

// UpdateTask はタスクを部分更新する。
// 保護者以上は全フィールドを変更できる。子供は自分が担当するタスクのstatusのみ変更できる。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) (*model.Task, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := s.findTask(ctx, member.FamilyID, taskID)
	if err != nil {
		return nil, err
	}

	if !member.Role.IsManager() {
		if !patch.statusOnly() {
			return nil, model.NewPermissionDeniedError("子供はタスクのステータスのみ変更できます。")
		}
		if t.AssigneeID == nil || *t.AssigneeID != userID {
			return nil, model.NewPermissionDeniedError("自分が担当するタスクのみ変更できます。")
		}
	}

	v := &model.ValidationError{}
	if patch.Status != nil && !patch.Status.Valid() {
		v.Add("status", "無効な状態です。")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		v.Add("priority", "無効な優先度です。")
	}
	if v.HasErrors() {
		return nil, v
	}
	if patch.AssigneeID.Set {
		if err := s.checkAssignee(ctx, member.FamilyID, patch.AssigneeID.Value); err != nil {
			return nil, err
		}
		t.AssigneeID = patch.AssigneeID.Value
	}
	if patch.SprintID.Set {
		if err := s.checkSprint(ctx, member.FamilyID, t.ProjectID, patch.SprintID.Value); err != nil {
			return nil, err
		}
		t.SprintID = patch.SprintID.Value
	}
	if patch.DueDate.Set {
		t.DueDate = patch.DueDate.Value
	}
	if patch.Title != nil {
		t.Title = trimmed(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = s.sanitize(*patch.Description)
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	t.UpdatedAt = s.now()

	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

// DeleteTask はタスクを削除する。作成者またはオーガナイザーのみ。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return err
	}
	t, err := s.findTask(ctx, member.FamilyID, taskID)
	if err != nil {
		return err
	}
	if err := ownerOrOrganizer(member, t.CreatedBy); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, t.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	slog.InfoContext(ctx, "task deleted",
		slog.String("task_id", t.ID),
		slog.String("user_id", userID),
	)
	return nil
}
