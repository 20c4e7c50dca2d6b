package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
)

// SprintServiceInterface はスプリントハンドラーが必要とするサービスインターフェース。
type SprintServiceInterface interface {
	ListSprints(ctx context.Context, userID, projectID string, page model.Page) (*project.PageResult[*model.Sprint], error)
	CreateSprint(ctx context.Context, userID, projectID string, in project.SprintInput) (*model.Sprint, error)
	GetSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error)
	UpdateSprint(ctx context.Context, userID, sprintID string, patch project.SprintPatch) (*model.Sprint, error)
	DeleteSprint(ctx context.Context, userID, sprintID string) error
	StartSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error)
	CompleteSprint(ctx context.Context, userID, sprintID string) (*project.SprintCompletion, error)
}

type createSprintRequest struct {
	Name      string `json:"name" validate:"required,notblank,max=200"`
	Goal      string `json:"goal" validate:"max=2000"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type patchSprintRequest struct {
	Name      *string `json:"name" validate:"omitnil,notblank,max=200"`
	Goal      *string `json:"goal" validate:"omitnil,max=2000"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// SprintHandler はスプリントのHTTPハンドラー。
type SprintHandler struct {
	service SprintServiceInterface
}

// NewSprintHandler はSprintHandlerを生成する。
func NewSprintHandler(service SprintServiceInterface) *SprintHandler {
	return &SprintHandler{service: service}
}

// List はプロジェクトのスプリント一覧を返す。
// GET /api/projects/{id}/sprints
func (h *SprintHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ListSprints(r.Context(), userID, projectID, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page, result.Count, mapSlice(result.Items, toSprintResponse)))
}

// Create はplanned状態のスプリントを作成する。
// POST /api/projects/{id}/sprints
func (h *SprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	var req createSprintRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	verr := &model.ValidationError{}
	in := project.SprintInput{
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: parseDate(verr, "start_date", req.StartDate),
		EndDate:   parseDate(verr, "end_date", req.EndDate),
	}
	if verr.HasErrors() {
		handleServiceError(w, r, verr)
		return
	}

	sp, err := h.service.CreateSprint(r.Context(), userID, projectID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSprintResponse(sp))
}

// Get はスプリントを返す。
// GET /api/sprints/{id}
func (h *SprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sprintID, ok := pathUUID(w, r, "id", model.NewSprintNotFoundError)
	if !ok {
		return
	}

	sp, err := h.service.GetSprint(r.Context(), userID, sprintID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSprintResponse(sp))
}

// Update はスプリントを部分更新する。
// PATCH /api/sprints/{id}
func (h *SprintHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sprintID, ok := pathUUID(w, r, "id", model.NewSprintNotFoundError)
	if !ok {
		return
	}

	var req patchSprintRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	verr := &model.ValidationError{}
	patch := project.SprintPatch{Name: req.Name, Goal: req.Goal}
	if req.StartDate != nil {
		d := parseDate(verr, "start_date", *req.StartDate)
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d := parseDate(verr, "end_date", *req.EndDate)
		patch.EndDate = &d
	}
	if verr.HasErrors() {
		handleServiceError(w, r, verr)
		return
	}

	sp, err := h.service.UpdateSprint(r.Context(), userID, sprintID, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSprintResponse(sp))
}

// Delete はスプリントを削除する。
// DELETE /api/sprints/{id}
func (h *SprintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sprintID, ok := pathUUID(w, r, "id", model.NewSprintNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteSprint(r.Context(), userID, sprintID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start はスプリントを開始する。
// POST /api/sprints/{id}/start
func (h *SprintHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sprintID, ok := pathUUID(w, r, "id", model.NewSprintNotFoundError)
	if !ok {
		return
	}

	sp, err := h.service.StartSprint(r.Context(), userID, sprintID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSprintResponse(sp))
}

// Complete はスプリントを完了し、未完了タスクをバックログに戻す。
// POST /api/sprints/{id}/complete
func (h *SprintHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sprintID, ok := pathUUID(w, r, "id", model.NewSprintNotFoundError)
	if !ok {
		return
	}

	res, err := h.service.CompleteSprint(r.Context(), userID, sprintID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sprintCompletionResponse{
		sprintResponse: toSprintResponse(res.Sprint),
		MovedTasks:     res.MovedTasks,
	})
}

