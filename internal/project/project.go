package project

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/model"
)

// ProjectInput はプロジェクト作成の入力。Statusが空の場合はactive。
type ProjectInput struct {
	Name        string
	Description string
	Status      model.ProjectStatus
}

// ProjectPatch はプロジェクト部分更新の入力。nilのフィールドは変更しない。
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *model.ProjectStatus
}

// ListProjects は所属家族のプロジェクト一覧を返す。
func (s *Service) ListProjects(ctx context.Context, userID string, filter model.ProjectFilter, page model.Page) (*PageResult[*model.Project], error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.NewValidationError("status", "無効な状態です。")
	}

	items, count, err := s.projects.List(ctx, member.FamilyID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, err
	}
	return &PageResult[*model.Project]{Items: items, Count: count}, nil
}

// CreateProject はプロジェクトを作成する。オーガナイザーと保護者のみ。
func (s *Service) CreateProject(ctx context.Context, userID string, in ProjectInput) (*model.Project, error) {
	member, err := s.requireManager(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.ProjectActive
	}
	if !status.Valid() {
		return nil, model.NewValidationError("status", "無効な状態です。")
	}

	now := s.now()
	p := &model.Project{
		ID:          uuid.New().String(),
		FamilyID:    member.FamilyID,
		Name:        trimmed(in.Name),
		Description: s.sanitize(in.Description),
		Status:      status,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.InfoContext(ctx, "project created",
		slog.String("project_id", p.ID),
		slog.String("family_id", p.FamilyID),
	)
	return p, nil
}

// GetProject はプロジェクトを返す。他家族のプロジェクトはPROJECT_NOT_FOUND。
func (s *Service) GetProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.findProject(ctx, member.FamilyID, projectID)
}

// UpdateProject はプロジェクトを部分更新する。作成者またはオーガナイザーのみ。
func (s *Service) UpdateProject(ctx context.Context, userID, projectID string, patch ProjectPatch) (*model.Project, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return nil, err
	}
	if err := ownerOrOrganizer(member, p.CreatedBy); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = trimmed(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = s.sanitize(*patch.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, model.NewValidationError("status", "無効な状態です。")
		}
		p.Status = *patch.Status
	}
	p.UpdatedAt = s.now()

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// DeleteProject はプロジェクトを削除する。作成者またはオーガナイザーのみ。
// スプリント、タスク、コメントはCASCADE削除される。
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return err
	}
	p, err := s.findProject(ctx, member.FamilyID, projectID)
	if err != nil {
		return err
	}
	if err := ownerOrOrganizer(member, p.CreatedBy); err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	slog.InfoContext(ctx, "project deleted",
		slog.String("project_id", p.ID),
		slog.String("user_id", userID),
	)
	return nil
}
