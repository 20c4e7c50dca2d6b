package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/repository"
)

// SprintInput はスプリント作成の入力。日付は日単位（UTC 0時）。
type SprintInput struct {
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
}

// SprintPatch はスプリント部分更新の入力。
type SprintPatch struct {
	Name      *string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// SprintCompletion はスプリント完了の結果。
type SprintCompletion struct {
	Sprint     *model.Sprint
	MovedTasks int64
}

func validateSprintDates(start, end time.Time) error {
	if end.Before(start) {
		return model.NewValidationError("end_date", "終了日は開始日以降の日付を指定してください。")
	}
	return nil
}

func (s *Service) findSprint(ctx context.Context, familyID, sprintID string) (*model.Sprint, error) {
	sp, err := s.sprints.FindByID(ctx, familyID, sprintID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sprint: %w", err)
	}
	if sp == nil {
		return nil, model.NewSprintNotFoundError(sprintID)
	}
	return sp, nil
}

// ListSprints はプロジェクトのスプリント一覧を返す。
func (s *Service) ListSprints(ctx context.Context, userID, projectID string, page model.Page) (*PageResult[*model.Sprint], error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return nil, err
	}

	items, count, err := s.sprints.ListByProject(ctx, p.ID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, err
	}
	return &PageResult[*model.Sprint]{Items: items, Count: count}, nil
}

// CreateSprint はplanned状態のスプリントを作成する。
func (s *Service) CreateSprint(ctx context.Context, userID, projectID string, in SprintInput) (*model.Sprint, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return nil, err
	}
	if err := validateSprintDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	now := s.now()
	sp := &model.Sprint{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		Name:      trimmed(in.Name),
		Goal:      s.sanitize(in.Goal),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    model.SprintPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sprints.Create(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to create sprint: %w", err)
	}
	return sp, nil
}

// GetSprint はスプリントを返す。
func (s *Service) GetSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.findSprint(ctx, member.FamilyID, sprintID)
}

// UpdateSprint はスプリントの名前・ゴール・期間を更新する。状態は Start/Complete でのみ変わる。
func (s *Service) UpdateSprint(ctx context.Context, userID, sprintID string, patch SprintPatch) (*model.Sprint, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	sp, err := s.findSprint(ctx, member.FamilyID, sprintID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		sp.Name = trimmed(*patch.Name)
	}
	if patch.Goal != nil {
		sp.Goal = s.sanitize(*patch.Goal)
	}
	if patch.StartDate != nil {
		sp.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		sp.EndDate = *patch.EndDate
	}
	if err := validateSprintDates(sp.StartDate, sp.EndDate); err != nil {
		return nil, err
	}
	sp.UpdatedAt = s.now()

	if err := s.sprints.Update(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to update sprint: %w", err)
	}
	return sp, nil
}

// DeleteSprint はスプリントを削除する。所属タスクはバックログに戻る。
func (s *Service) DeleteSprint(ctx context.Context, userID, sprintID string) error {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return err
	}
	sp, err := s.findSprint(ctx, member.FamilyID, sprintID)
	if err != nil {
		return err
	}
	if err := s.sprints.Delete(ctx, sp.ID); err != nil {
		return fmt.Errorf("failed to delete sprint: %w", err)
	}
	return nil
}

// StartSprint はplannedのスプリントを開始する。
// 同じプロジェクトに実行中のスプリントがある場合はSPRINT_ALREADY_ACTIVE。
func (s *Service) StartSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	sp, err := s.findSprint(ctx, member.FamilyID, sprintID)
	if err != nil {
		return nil, err
	}
	if sp.Status != model.SprintPlanned {
		return nil, model.NewInvalidSprintTransitionError(sp.Status, model.SprintActive)
	}

	now := s.now()
	if err := s.sprints.Start(ctx, sp.ID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrSprintAlreadyActive):
			return nil, model.NewSprintAlreadyActiveError()
		case errors.Is(err, repository.ErrStateConflict):
			return nil, s.transitionConflict(ctx, member.FamilyID, sp, model.SprintActive)
		}
		return nil, fmt.Errorf("failed to start sprint: %w", err)
	}
	sp.Status = model.SprintActive
	sp.UpdatedAt = now

	slog.InfoContext(ctx, "sprint started",
		slog.String("sprint_id", sp.ID),
		slog.String("project_id", sp.ProjectID),
	)
	return sp, nil
}

// CompleteSprint はactiveのスプリントを完了し、未完了タスクをバックログに戻す。
func (s *Service) CompleteSprint(ctx context.Context, userID, sprintID string) (*SprintCompletion, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}
	sp, err := s.findSprint(ctx, member.FamilyID, sprintID)
	if err != nil {
		return nil, err
	}
	if sp.Status != model.SprintActive {
		return nil, model.NewInvalidSprintTransitionError(sp.Status, model.SprintCompleted)
	}

	now := s.now()
	moved, err := s.sprints.Complete(ctx, sp.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, s.transitionConflict(ctx, member.FamilyID, sp, model.SprintCompleted)
		}
		return nil, fmt.Errorf("failed to complete sprint: %w", err)
	}
	sp.Status = model.SprintCompleted
	sp.UpdatedAt = now

	slog.InfoContext(ctx, "sprint completed",
		slog.String("sprint_id", sp.ID),
		slog.Int64("moved_tasks", moved),
	)
	return &SprintCompletion{Sprint: sp, MovedTasks: moved}, nil
}

// transitionConflict は同時更新で状態が変わっていた場合に、現在の状態を含むエラーを返す。
func (s *Service) transitionConflict(ctx context.Context, familyID string, sp *model.Sprint, to model.SprintStatus) error {
	current, err := s.sprints.FindByID(ctx, familyID, sp.ID)
	if err != nil {
		return fmt.Errorf("failed to find sprint: %w", err)
	}
	if current == nil {
		return model.NewSprintNotFoundError(sp.ID)
	}
	return model.NewInvalidSprintTransitionError(current.Status, to)
}
