package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
)

// sprintBacklog はタスク一覧のsprintフィルタでスプリント未割当を指す値。
const sprintBacklog = "backlog"

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	ListTasks(ctx context.Context, userID, projectID string, filter model.TaskFilter, page model.Page) (*project.PageResult[*model.Task], error)
	CreateTask(ctx context.Context, userID, projectID string, in project.TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch project.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}

type createTaskRequest struct {
	Title       string             `json:"title" validate:"required,notblank,max=200"`
	Description string             `json:"description" validate:"max=5000"`
	Status      model.TaskStatus   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    model.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssigneeID  *string            `json:"assignee_id"`
	SprintID    *string            `json:"sprint_id"`
	DueDate     *string            `json:"due_date"`
}

type patchTaskRequest struct {
	Title       *string             `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string             `json:"description" validate:"omitnil,max=5000"`
	Status      *model.TaskStatus   `json:"status" validate:"omitnil,oneof=todo in_progress done"`
	Priority    *model.TaskPriority `json:"priority" validate:"omitnil,oneof=low medium high"`
	AssigneeID  optional[string]    `json:"assignee_id"`
	SprintID    optional[string]    `json:"sprint_id"`
	DueDate     optional[string]    `json:"due_date"`
}

// TaskHandler はタスクのHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// List はプロジェクトのタスク一覧を返す。
// GET /api/projects/{id}/tasks?status=&priority=&assignee=&sprint=&search=&ordering=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
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
	filter, err := parseTaskFilter(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ListTasks(r.Context(), userID, projectID, filter, page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page, result.Count, mapSlice(result.Items, toTaskResponse)))
}

// Create はタスクを作成する。
// POST /api/projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projectID, ok := pathUUID(w, r, "id", model.NewProjectNotFoundError)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	in := project.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		SprintID:    req.SprintID,
	}
	verr := &model.ValidationError{}
	checkUUID(verr, "assignee_id", req.AssigneeID)
	checkUUID(verr, "sprint_id", req.SprintID)
	if req.DueDate != nil {
		d := parseDate(verr, "due_date", *req.DueDate)
		in.DueDate = &d
	}
	if verr.HasErrors() {
		handleServiceError(w, r, verr)
		return
	}

	t, err := h.service.CreateTask(r.Context(), userID, projectID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// Get はタスクを返す。
// GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := pathUUID(w, r, "id", model.NewTaskNotFoundError)
	if !ok {
		return
	}

	t, err := h.service.GetTask(r.Context(), userID, taskID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Update はタスクを部分更新する。assignee_id、sprint_id、due_dateはnullで解除できる。
// PATCH /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := pathUUID(w, r, "id", model.NewTaskNotFoundError)
	if !ok {
		return
	}

	var req patchTaskRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	patch := project.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID.nullable(),
		SprintID:    req.SprintID.nullable(),
	}
	verr := &model.ValidationError{}
	checkUUID(verr, "assignee_id", req.AssigneeID.Value)
	checkUUID(verr, "sprint_id", req.SprintID.Value)
	if req.DueDate.Set {
		patch.DueDate.Set = true
		if req.DueDate.Value != nil {
			d := parseDate(verr, "due_date", *req.DueDate.Value)
			patch.DueDate.Value = &d
		}
	}
	if verr.HasErrors() {
		handleServiceError(w, r, verr)
		return
	}

	t, err := h.service.UpdateTask(r.Context(), userID, taskID, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Delete はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, ok := pathUUID(w, r, "id", model.NewTaskNotFoundError)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, taskID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTaskFilter はタスク一覧のクエリパラメータを解釈する。
// assigneeはmeかユーザーID、sprintはbacklogかスプリントIDのみを受け付ける。
func parseTaskFilter(r *http.Request) (model.TaskFilter, error) {
	q := r.URL.Query()
	filter := model.TaskFilter{
		Status:     model.TaskStatus(q.Get("status")),
		Priority:   model.TaskPriority(q.Get("priority")),
		AssigneeID: q.Get("assignee"),
		Search:     q.Get("search"),
		Ordering:   q.Get("ordering"),
	}

	verr := &model.ValidationError{}
	if a := filter.AssigneeID; a != "" && a != project.AssigneeMe && !isUUID(a) {
		verr.Add("assignee", msgInvalidID)
	}
	switch sprint := q.Get("sprint"); {
	case sprint == sprintBacklog:
		filter.Backlog = true
	case sprint == "" || isUUID(sprint):
		filter.SprintID = sprint
	default:
		verr.Add("sprint", msgInvalidID)
	}
	if verr.HasErrors() {
		return model.TaskFilter{}, verr
	}
	return filter, nil
}
