package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	ListProjects(ctx context.Context, userID string, filter model.ProjectFilter, page model.Page) (*project.PageResult[*model.Project], error)
	CreateProject(ctx context.Context, userID string, in project.ProjectInput) (*model.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (*model.Project, error)
	UpdateProject(ctx context.Context, userID, projectID string, patch project.ProjectPatch) (*model.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
}

type createProjectRequest struct {
	Name        string              `json:"name" validate:"required,notblank,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Status      model.ProjectStatus `json:"status" validate:"omitempty,oneof=active archived"`
}

type patchProjectRequest struct {
	Name        *string              `json:"name" validate:"omitnil,notblank,max=200"`
	Description *string              `json:"description" validate:"omitnil,max=5000"`
	Status      *model.ProjectStatus `json:"status" validate:"omitnil,oneof=active archived"`
}

// ProjectHandler はプロジェクトのHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// List は所属家族のプロジェクト一覧を返す。
// GET /api/projects?status=&search=&ordering=&page=&page_size=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := model.ProjectFilter{
		Status:   model.ProjectStatus(q.Get("status")),
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
	}

	result, err := h.service.ListProjects(r.Context(), userID, filter, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page, result.Count, mapSlice(result.Items, toProjectResponse)))
}

// Create はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.CreateProject(r.Context(), userID, project.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// Get はプロジェクトを返す。
// GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	p, err := h.service.GetProject(r.Context(), userID, projectID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Update はプロジェクトを部分更新する。
// PATCH /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	var req patchProjectRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.UpdateProject(r.Context(), userID, projectID, project.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete はプロジェクトを削除する。
// DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteProject(r.Context(), userID, projectID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
