package project

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/model"
)

const msgCommentBodyRequired = "コメント本文を入力してください。"

func (s *Service) findComment(ctx context.Context, familyID, commentID string) (*model.Comment, error) {
	c, err := s.comments.FindByID(ctx, familyID, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	return c, nil
}

// ListComments はタスクのコメント一覧を作成日時順で返す。
func (s *Service) ListComments(ctx context.Context, userID, taskID string, page model.Page) (*PageResult[*model.Comment], error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := s.findTask(ctx, member.FamilyID, taskID)
	if err != nil {
		return nil, err
	}

	items, count, err := s.comments.ListByTask(ctx, t.ID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, err
	}
	return &PageResult[*model.Comment]{Items: items, Count: count}, nil
}

// CreateComment はタスクにコメントを追加する。家族のメンバーであれば役割を問わない。
// サニタイズ後に本文が空になる場合はバリデーションエラー。
func (s *Service) CreateComment(ctx context.Context, userID, taskID, body string) (*model.Comment, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := s.findTask(ctx, member.FamilyID, taskID)
	if err != nil {
		return nil, err
	}

	clean := s.sanitize(body)
	if clean == "" {
		return nil, model.NewValidationError("body", msgCommentBodyRequired)
	}

	now := s.now()
	c := &model.Comment{
		ID:        uuid.New().String(),
		TaskID:    t.ID,
		AuthorID:  userID,
		Body:      clean,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	// 投稿者名を含めて返すため再取得する。
	return s.findComment(ctx, member.FamilyID, c.ID)
}

// UpdateComment はコメント本文を更新する。投稿者本人のみ。
func (s *Service) UpdateComment(ctx context.Context, userID, commentID, body string) (*model.Comment, error) {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.findComment(ctx, member.FamilyID, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, model.NewPermissionDeniedError("コメントは投稿者のみ編集できます。")
	}

	clean := s.sanitize(body)
	if clean == "" {
		return nil, model.NewValidationError("body", msgCommentBodyRequired)
	}
	c.Body = clean
	c.UpdatedAt = s.now()

	if err := s.comments.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return c, nil
}

// DeleteComment はコメントを削除する。投稿者本人またはオーガナイザーのみ。
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	member, err := s.scope(ctx, userID)
	if err != nil {
		return err
	}
	c, err := s.findComment(ctx, member.FamilyID, commentID)
	if err != nil {
		return err
	}
	if err := ownerOrOrganizer(member, c.AuthorID); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}
