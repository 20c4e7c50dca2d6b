// Package project は家族内のプロジェクト、スプリント、タスク、コメントの管理を提供する。
// すべての操作は呼び出し元の所属家族にスコープされ、他家族のリソースは存在しないものとして扱う。
package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/repository"
	"github.com/hitoshi/familyhub/internal/security"
)

// Nullable はPATCHで「未指定」「null」「値」を区別するためのフィールド。
// Setがfalseの場合は変更しない。SetがtrueでValueがnilの場合はnullに更新する。
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// PageResult はページ単位の一覧結果。Countは絞り込み後の総件数。
type PageResult[T any] struct {
	Items []T
	Count int
}

// Service はプロジェクト管理のビジネスロジックを提供する。
type Service struct {
	members   repository.MemberRepository
	projects  repository.ProjectRepository
	sprints   repository.SprintRepository
	tasks     repository.TaskRepository
	comments  repository.CommentRepository
	sanitizer security.Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	members repository.MemberRepository,
	projects repository.ProjectRepository,
	sprints repository.SprintRepository,
	tasks repository.TaskRepository,
	comments repository.CommentRepository,
	sanitizer security.Sanitizer,
) *Service {
	return &Service{
		members:   members,
		projects:  projects,
		sprints:   sprints,
		tasks:     tasks,
		comments:  comments,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// scope は呼び出し元のメンバーシップを返す。未所属の場合はFAMILY_REQUIRED。
func (s *Service) scope(ctx context.Context, userID string) (*model.FamilyMember, error) {
	member, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if member == nil {
		return nil, model.NewFamilyRequiredError()
	}
	return member, nil
}

func (s *Service) requireManager(ctx context.Context, userID string) (*model.FamilyMember, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !member.Role.IsManager() {
		return nil, model.NewPermissionDeniedError("この操作はオーガナイザーまたは保護者のみ実行できます。")
	}
	return member, nil
}

// ownerOrOrganizer は作成者本人またはオーガナイザーであることを確認する。
func ownerOrOrganizer(member *model.FamilyMember, ownerID string) error {
	if member.Role == model.RoleOrganizer || (ownerID != "" && member.UserID == ownerID) {
		return nil
	}
	return model.NewPermissionDeniedError("作成者またはオーガナイザーのみ実行できます。")
}

func (s *Service) findProject(ctx context.Context, familyID, projectID string) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, familyID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if p == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return p, nil
}

// checkPage は要求ページが範囲内かを検証する。結果が0件の場合は1ページ目のみ有効。
func checkPage(page model.Page, count int) error {
	if page.Number < 1 || page.Size < 1 {
		return model.NewInvalidPageError()
	}
	if page.Number > 1 && page.Offset() >= count {
		return model.NewInvalidPageError()
	}
	return nil
}

// sanitize はHTMLを除去したプレーンテキストを返す。
func (s *Service) sanitize(in string) string {
	return s.sanitizer.Sanitize(in)
}

func trimmed(in string) string {
	return strings.TrimSpace(in)
}
