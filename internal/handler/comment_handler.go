package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListComments(ctx context.Context, userID, taskID string, page model.Page) (*project.PageResult[*model.Comment], error)
	CreateComment(ctx context.Context, userID, taskID, body string) (*model.Comment, error)
	UpdateComment(ctx context.Context, userID, commentID, body string) (*model.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID string) error
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// CommentHandler はタスクコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// List はタスクのコメント一覧を返す。
// GET /api/tasks/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "id", model.NewTaskNotFoundError)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ListComments(r.Context(), userID, taskID, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page, result.Count, mapSlice(result.Items, toCommentResponse)))
}

// Create はタスクにコメントを投稿する。
// POST /api/tasks/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "id", model.NewTaskNotFoundError)
	if !ok {
		return
	}

	var req commentRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.CreateComment(r.Context(), userID, taskID, req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

// Update はコメント本文を更新する。
// PATCH /api/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	commentID, ok := pathUUID(w, r, "id", model.NewCommentNotFoundError)
	if !ok {
		return
	}

	var req commentRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	c, err := h.service.UpdateComment(r.Context(), userID, commentID, req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

// Delete はコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	commentID, ok := pathUUID(w, r, "id", model.NewCommentNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), userID, commentID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
