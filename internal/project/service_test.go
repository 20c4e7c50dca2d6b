package project

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/repository"
	"github.com/hitoshi/familyhub/internal/security"
)

// --- インメモリのリポジトリ ---

// store はプロジェクト配下のリソースを保持し、家族IDによるスコープを再現する。
type store struct {
	members  map[string]model.FamilyMember
	projects map[string]*model.Project
	sprints  map[string]*model.Sprint
	tasks    map[string]*model.Task
	comments map[string]*model.Comment

	startErr    error
	completeErr error
	lastFilter  model.TaskFilter
}

func newStore() *store {
	return &store{
		members:  map[string]model.FamilyMember{},
		projects: map[string]*model.Project{},
		sprints:  map[string]*model.Sprint{},
		tasks:    map[string]*model.Task{},
		comments: map[string]*model.Comment{},
	}
}

func (s *store) projectFamily(projectID string) string {
	if p, ok := s.projects[projectID]; ok {
		return p.FamilyID
	}
	return ""
}

func (s *store) taskFamily(taskID string) string {
	if t, ok := s.tasks[taskID]; ok {
		return s.projectFamily(t.ProjectID)
	}
	return ""
}

func paginate[T any](items []T, page model.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type memMembers struct{ *store }

func (m memMembers) FindByUserID(_ context.Context, userID string) (*model.FamilyMember, error) {
	if mem, ok := m.members[userID]; ok {
		return &mem, nil
	}
	return nil, nil
}

func (memMembers) ListByFamily(context.Context, string) ([]model.MemberWithUser, error) { return nil, nil }
func (memMembers) ExistsByEmail(context.Context, string, string) (bool, error)          { return false, nil }
func (memMembers) UpdateRole(context.Context, string, string, model.Role) error         { return nil }
func (memMembers) TransferOrganizer(context.Context, string, string, string) error      { return nil }
func (memMembers) Remove(context.Context, string, string) error                         { return nil }
func (memMembers) Leave(context.Context, string) (bool, error)                          { return false, nil }

type memProjects struct{ *store }

func (m memProjects) Create(_ context.Context, p *model.Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m memProjects) FindByID(_ context.Context, familyID, id string) (*model.Project, error) {
	p, ok := m.projects[id]
	if !ok || p.FamilyID != familyID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m memProjects) List(_ context.Context, familyID string, filter model.ProjectFilter, page model.Page) ([]*model.Project, int, error) {
	var items []*model.Project
	for _, p := range m.projects {
		if p.FamilyID != familyID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		items = append(items, p)
	}
	return paginate(items, page), len(items), nil
}

func (m memProjects) Update(_ context.Context, p *model.Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m memProjects) Delete(_ context.Context, id string) error {
	delete(m.projects, id)
	return nil
}

type memSprints struct{ *store }

func (m memSprints) Create(_ context.Context, sp *model.Sprint) error {
	cp := *sp
	m.sprints[sp.ID] = &cp
	return nil
}

func (m memSprints) FindByID(_ context.Context, familyID, id string) (*model.Sprint, error) {
	sp, ok := m.sprints[id]
	if !ok || m.projectFamily(sp.ProjectID) != familyID {
		return nil, nil
	}
	cp := *sp
	return &cp, nil
}

func (m memSprints) FindActive(_ context.Context, projectID string) (*model.Sprint, error) {
	for _, sp := range m.sprints {
		if sp.ProjectID == projectID && sp.Status == model.SprintActive {
			cp := *sp
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memSprints) ListByProject(_ context.Context, projectID string, page model.Page) ([]*model.Sprint, int, error) {
	var items []*model.Sprint
	for _, sp := range m.sprints {
		if sp.ProjectID == projectID {
			items = append(items, sp)
		}
	}
	return paginate(items, page), len(items), nil
}

func (m memSprints) Update(_ context.Context, sp *model.Sprint) error {
	cp := *sp
	m.sprints[sp.ID] = &cp
	return nil
}

func (m memSprints) Delete(_ context.Context, id string) error {
	delete(m.sprints, id)
	return nil
}

func (m memSprints) Start(_ context.Context, id string, at time.Time) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.sprints[id].Status = model.SprintActive
	m.sprints[id].UpdatedAt = at
	return nil
}

func (m memSprints) Complete(_ context.Context, id string, at time.Time) (int64, error) {
	if m.completeErr != nil {
		return 0, m.completeErr
	}
	m.sprints[id].Status = model.SprintCompleted
	m.sprints[id].UpdatedAt = at
	var moved int64
	for _, t := range m.tasks {
		if t.SprintID != nil && *t.SprintID == id && t.Status != model.TaskDone {
			t.SprintID = nil
			moved++
		}
	}
	return moved, nil
}

type memTasks struct{ *store }

func (m memTasks) Create(_ context.Context, t *model.Task) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m memTasks) FindByID(_ context.Context, familyID, id string) (*model.Task, error) {
	t, ok := m.tasks[id]
	if !ok || m.projectFamily(t.ProjectID) != familyID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m memTasks) List(_ context.Context, projectID string, filter model.TaskFilter, page model.Page) ([]*model.Task, int, error) {
	m.store.lastFilter = filter
	var items []*model.Task
	for _, t := range m.tasks {
		if t.ProjectID != projectID {
			continue
		}
		if filter.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != filter.AssigneeID) {
			continue
		}
		items = append(items, t)
	}
	return paginate(items, page), len(items), nil
}

func (m memTasks) Update(_ context.Context, t *model.Task) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m memTasks) Delete(_ context.Context, id string) error {
	delete(m.tasks, id)
	return nil
}

type memComments struct{ *store }

func (m memComments) Create(_ context.Context, c *model.Comment) error {
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m memComments) FindByID(_ context.Context, familyID, id string) (*model.Comment, error) {
	c, ok := m.comments[id]
	if !ok || m.taskFamily(c.TaskID) != familyID {
		return nil, nil
	}
	cp := *c
	cp.AuthorName = "name-of-" + c.AuthorID
	return &cp, nil
}

func (m memComments) ListByTask(_ context.Context, taskID string, page model.Page) ([]*model.Comment, int, error) {
	var items []*model.Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			items = append(items, c)
		}
	}
	return paginate(items, page), len(items), nil
}

func (m memComments) Update(_ context.Context, c *model.Comment) error {
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m memComments) Delete(_ context.Context, id string) error {
	delete(m.comments, id)
	return nil
}

var (
	_ repository.MemberRepository  = memMembers{}
	_ repository.ProjectRepository = memProjects{}
	_ repository.SprintRepository  = memSprints{}
	_ repository.TaskRepository    = memTasks{}
	_ repository.CommentRepository = memComments{}
)

// --- ヘルパー ---

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

var firstPage = model.Page{Number: 1, Size: 20}

// newFixture は家族fam-1（organizer/parent/child）と別家族fam-2のユーザーを用意する。
// fam-1にはproj-1、その中にsprint-1（planned）とkidが担当するtask-1がある。
func newFixture() (*Service, *store) {
	st := newStore()
	st.members["org"] = model.FamilyMember{FamilyID: "fam-1", UserID: "org", Role: model.RoleOrganizer}
	st.members["mom"] = model.FamilyMember{FamilyID: "fam-1", UserID: "mom", Role: model.RoleParent}
	st.members["dad"] = model.FamilyMember{FamilyID: "fam-1", UserID: "dad", Role: model.RoleParent}
	st.members["kid"] = model.FamilyMember{FamilyID: "fam-1", UserID: "kid", Role: model.RoleChild}
	st.members["outsider"] = model.FamilyMember{FamilyID: "fam-2", UserID: "outsider", Role: model.RoleOrganizer}

	st.projects["proj-1"] = &model.Project{ID: "proj-1", FamilyID: "fam-1", Name: "夏休み", Status: model.ProjectActive, CreatedBy: "mom"}
	st.projects["proj-other"] = &model.Project{ID: "proj-other", FamilyID: "fam-1", Name: "引っ越し", Status: model.ProjectActive, CreatedBy: "mom"}
	st.sprints["sprint-1"] = &model.Sprint{
		ID: "sprint-1", ProjectID: "proj-1", Name: "第1週", Status: model.SprintPlanned,
		StartDate: testNow, EndDate: testNow.AddDate(0, 0, 6),
	}
	st.sprints["sprint-other"] = &model.Sprint{ID: "sprint-other", ProjectID: "proj-other", Status: model.SprintPlanned}
	kid := "kid"
	st.tasks["task-1"] = &model.Task{
		ID: "task-1", ProjectID: "proj-1", Title: "宿題", Status: model.TaskTodo,
		Priority: model.PriorityMedium, AssigneeID: &kid, CreatedBy: "mom",
	}

	svc := NewService(memMembers{st}, memProjects{st}, memSprints{st}, memTasks{st}, memComments{st}, security.NewTextSanitizer())
	svc.now = func() time.Time { return testNow }
	return svc, st
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("error code = %s, want %s", apiErr.Code, code)
	}
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var v *model.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected *model.ValidationError on %q, got %T (%v)", field, err, err)
	}
	if len(v.Fields[field]) == 0 {
		t.Fatalf("expected error on field %q, got %v", field, v.Fields)
	}
}

func ptr[T any](v T) *T { return &v }

// --- 共通 ---

func TestFamilyRequired(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.ListProjects(ctx, "nobody", model.ProjectFilter{}, firstPage)
	assertCode(t, err, model.ErrCodeFamilyRequired)

	_, err = svc.CreateComment(ctx, "nobody", "task-1", "hi")
	assertCode(t, err, model.ErrCodeFamilyRequired)
}

func TestOtherFamilyResourcesAreNotFound(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.GetProject(ctx, "outsider", "proj-1")
	assertCode(t, err, model.ErrCodeProjectNotFound)

	_, err = svc.GetSprint(ctx, "outsider", "sprint-1")
	assertCode(t, err, model.ErrCodeSprintNotFound)

	_, err = svc.GetTask(ctx, "outsider", "task-1")
	assertCode(t, err, model.ErrCodeTaskNotFound)

	err = svc.DeleteTask(ctx, "outsider", "task-1")
	assertCode(t, err, model.ErrCodeTaskNotFound)
}

func TestInvalidPage(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.ListSprints(ctx, "kid", "proj-1", model.Page{Number: 1, Size: 20}); err != nil {
		t.Fatalf("first page should be valid: %v", err)
	}
	_, err := svc.ListSprints(ctx, "kid", "proj-1", model.Page{Number: 2, Size: 20})
	assertCode(t, err, model.ErrCodeInvalidPage)

	// 0件でも1ページ目は有効
	res, err := svc.ListComments(ctx, "kid", "task-1", firstPage)
	if err != nil {
		t.Fatalf("ListComments returned error: %v", err)
	}
	if res.Count != 0 || len(res.Items) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

// --- プロジェクト ---

func TestCreateProject_Permissions(t *testing.T) {
	tests := []struct {
		userID  string
		wantErr bool
	}{
		{"org", false},
		{"mom", false},
		{"kid", true},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			svc, _ := newFixture()
			p, err := svc.CreateProject(context.Background(), tt.userID, ProjectInput{
				Name:        "  大掃除  ",
				Description: "<b>窓</b>を拭く",
			})
			if tt.wantErr {
				assertCode(t, err, model.ErrCodePermissionDenied)
				return
			}
			if err != nil {
				t.Fatalf("CreateProject returned error: %v", err)
			}
			if p.Name != "大掃除" || p.Description != "窓を拭く" {
				t.Errorf("name/description not normalized: %q / %q", p.Name, p.Description)
			}
			if p.Status != model.ProjectActive || p.FamilyID != "fam-1" || p.CreatedBy != tt.userID {
				t.Errorf("unexpected project: %+v", p)
			}
		})
	}
}

func TestUpdateProject_CreatorOrOrganizer(t *testing.T) {
	ctx := context.Background()
	archived := model.ProjectArchived

	for _, userID := range []string{"mom", "org"} {
		svc, _ := newFixture()
		p, err := svc.UpdateProject(ctx, userID, "proj-1", ProjectPatch{Status: &archived})
		if err != nil {
			t.Fatalf("UpdateProject by %s returned error: %v", userID, err)
		}
		if p.Status != model.ProjectArchived || p.Name != "夏休み" {
			t.Errorf("unexpected project after patch by %s: %+v", userID, p)
		}
	}

	svc, _ := newFixture()
	_, err := svc.UpdateProject(ctx, "dad", "proj-1", ProjectPatch{Name: ptr("x")})
	assertCode(t, err, model.ErrCodePermissionDenied)

	bogus := model.ProjectStatus("deleted")
	_, err = svc.UpdateProject(ctx, "mom", "proj-1", ProjectPatch{Status: &bogus})
	assertFieldError(t, err, "status")
}

func TestDeleteProject(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()

	err := svc.DeleteProject(ctx, "kid", "proj-1")
	assertCode(t, err, model.ErrCodePermissionDenied)

	if err := svc.DeleteProject(ctx, "org", "proj-1"); err != nil {
		t.Fatalf("DeleteProject returned error: %v", err)
	}
	if _, ok := st.projects["proj-1"]; ok {
		t.Error("project should be deleted")
	}
}

// --- スプリント ---

func TestCreateSprint_DateValidation(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.CreateSprint(ctx, "mom", "proj-1", SprintInput{
		Name: "逆転", StartDate: testNow, EndDate: testNow.AddDate(0, 0, -1),
	})
	assertFieldError(t, err, "end_date")

	sp, err := svc.CreateSprint(ctx, "mom", "proj-1", SprintInput{
		Name: "1日だけ", StartDate: testNow, EndDate: testNow,
	})
	if err != nil {
		t.Fatalf("same-day sprint should be valid: %v", err)
	}
	if sp.Status != model.SprintPlanned {
		t.Errorf("status = %s, want planned", sp.Status)
	}

	_, err = svc.CreateSprint(ctx, "kid", "proj-1", SprintInput{StartDate: testNow, EndDate: testNow})
	assertCode(t, err, model.ErrCodePermissionDenied)
}

func TestUpdateSprint_RechecksDates(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.UpdateSprint(context.Background(), "mom", "sprint-1", SprintPatch{
		EndDate: ptr(testNow.AddDate(0, 0, -3)),
	})
	assertFieldError(t, err, "end_date")
}

func TestSprintLifecycle(t *testing.T) {
	svc, st := newFixture()
	ctx := context.Background()
	sprintID := "sprint-1"
	st.tasks["task-1"].SprintID = &sprintID
	st.tasks["task-done"] = &model.Task{ID: "task-done", ProjectID: "proj-1", SprintID: &sprintID, Status: model.TaskDone}

	// planned -> completed は不可
	_, err := svc.CompleteSprint(ctx, "mom", sprintID)
	assertCode(t, err, model.ErrCodeInvalidSprintTransition)

	sp, err := svc.StartSprint(ctx, "mom", sprintID)
	if err != nil {
		t.Fatalf("StartSprint returned error: %v", err)
	}
	if sp.Status != model.SprintActive {
		t.Fatalf("status = %s, want active", sp.Status)
	}

	_, err = svc.StartSprint(ctx, "mom", sprintID)
	assertCode(t, err, model.ErrCodeInvalidSprintTransition)

	done, err := svc.CompleteSprint(ctx, "mom", sprintID)
	if err != nil {
		t.Fatalf("CompleteSprint returned error: %v", err)
	}
	if done.Sprint.Status != model.SprintCompleted || done.MovedTasks != 1 {
		t.Errorf("unexpected completion: status=%s moved=%d", done.Sprint.Status, done.MovedTasks)
	}
	if st.tasks["task-1"].SprintID != nil {
		t.Error("unfinished task should be moved back to the backlog")
	}
	if st.tasks["task-done"].SprintID == nil {
		t.Error("done task should stay in the sprint")
	}

	_, err = svc.StartSprint(ctx, "mom", sprintID)
	assertCode(t, err, model.ErrCodeInvalidSprintTransition)
}

func TestStartSprint_AnotherActive(t *testing.T) {
	svc, st := newFixture()
	st.startErr = repository.ErrSprintAlreadyActive

	_, err := svc.StartSprint(context.Background(), "org", "sprint-1")
	assertCode(t, err, model.ErrCodeSprintAlreadyActive)
}

func TestStartSprint_ConcurrentTransition(t *testing.T) {
	svc, st := newFixture()
	st.startErr = repository.ErrStateConflict
	svc.sprints = racingSprints{memSprints{st}}

	_, err := svc.StartSprint(context.Background(), "org", "sprint-1")
	assertCode(t, err, model.ErrCodeInvalidSprintTransition)
	if !strings.Contains(err.Error(), string(model.SprintCompleted)) {
		t.Errorf("error should report the current status, got %v", err)
	}
}

// racingSprints はStart呼び出し時点でスプリントが完了済みになっている状況を再現する。
type racingSprints struct{ memSprints }

func (r racingSprints) Start(ctx context.Context, id string, at time.Time) error {
	r.sprints[id].Status = model.SprintCompleted
	return r.memSprints.Start(ctx, id, at)
}

// --- タスク ---

func TestCreateTask_Defaults(t *testing.T) {
	svc, _ := newFixture()
	task, err := svc.CreateTask(context.Background(), "mom", "proj-1", TaskInput{
		Title:       "買い物",
		Description: "<script>alert(1)</script>牛乳",
		AssigneeID:  ptr("kid"),
		SprintID:    ptr("sprint-1"),
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if task.Status != model.TaskTodo || task.Priority != model.PriorityMedium {
		t.Errorf("defaults not applied: %s / %s", task.Status, task.Priority)
	}
	if task.Description != "牛乳" {
		t.Errorf("description = %q, want sanitized text", task.Description)
	}
	if task.CreatedBy != "mom" || *task.AssigneeID != "kid" {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestCreateTask_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		in    TaskInput
		code  string
		field string
	}{
		{name: "child", user: "kid", in: TaskInput{Title: "x"}, code: model.ErrCodePermissionDenied},
		{name: "assignee in other family", user: "mom", in: TaskInput{Title: "x", AssigneeID: ptr("outsider")}, field: "assignee_id"},
		{name: "unknown assignee", user: "mom", in: TaskInput{Title: "x", AssigneeID: ptr("ghost")}, field: "assignee_id"},
		{name: "sprint of another project", user: "mom", in: TaskInput{Title: "x", SprintID: ptr("sprint-other")}, field: "sprint_id"},
		{name: "invalid priority", user: "mom", in: TaskInput{Title: "x", Priority: "urgent"}, field: "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newFixture()
			_, err := svc.CreateTask(context.Background(), tt.user, "proj-1", tt.in)
			if tt.field != "" {
				assertFieldError(t, err, tt.field)
				return
			}
			assertCode(t, err, tt.code)
		})
	}
}

func TestUpdateTask_ChildRules(t *testing.T) {
	ctx := context.Background()
	done := model.TaskDone

	svc, _ := newFixture()
	task, err := svc.UpdateTask(ctx, "kid", "task-1", TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("child should update status of own task: %v", err)
	}
	if task.Status != model.TaskDone {
		t.Errorf("status = %s, want done", task.Status)
	}

	_, err = svc.UpdateTask(ctx, "kid", "task-1", TaskPatch{Title: ptr("遊ぶ")})
	assertCode(t, err, model.ErrCodePermissionDenied)

	_, err = svc.UpdateTask(ctx, "kid", "task-1", TaskPatch{Status: &done, DueDate: Nullable[time.Time]{Set: true}})
	assertCode(t, err, model.ErrCodePermissionDenied)

	svc, st := newFixture()
	st.tasks["task-1"].AssigneeID = ptr("mom")
	_, err = svc.UpdateTask(ctx, "kid", "task-1", TaskPatch{Status: &done})
	assertCode(t, err, model.ErrCodePermissionDenied)
}

func TestUpdateTask_ManagerClearsNullableFields(t *testing.T) {
	svc, st := newFixture()
	st.tasks["task-1"].SprintID = ptr("sprint-1")
	st.tasks["task-1"].DueDate = ptr(testNow)

	task, err := svc.UpdateTask(context.Background(), "dad", "task-1", TaskPatch{
		AssigneeID: Nullable[string]{Set: true},
		SprintID:   Nullable[string]{Set: true},
		Priority:   ptr(model.PriorityHigh),
	})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if task.AssigneeID != nil || task.SprintID != nil {
		t.Errorf("assignee/sprint should be cleared: %+v", task)
	}
	if task.DueDate == nil {
		t.Error("due date was not in the patch and should be kept")
	}
	if task.Priority != model.PriorityHigh {
		t.Errorf("priority = %s, want high", task.Priority)
	}
}

func TestUpdateTask_SprintMustBelongToProject(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.UpdateTask(context.Background(), "mom", "task-1", TaskPatch{
		SprintID: Nullable[string]{Set: true, Value: ptr("sprint-other")},
	})
	assertFieldError(t, err, "sprint_id")
}

func TestDeleteTask_CreatorOrOrganizer(t *testing.T) {
	ctx := context.Background()

	svc, _ := newFixture()
	err := svc.DeleteTask(ctx, "dad", "task-1")
	assertCode(t, err, model.ErrCodePermissionDenied)

	for _, userID := range []string{"mom", "org"} {
		svc, st := newFixture()
		if err := svc.DeleteTask(ctx, userID, "task-1"); err != nil {
			t.Fatalf("DeleteTask by %s returned error: %v", userID, err)
		}
		if _, ok := st.tasks["task-1"]; ok {
			t.Errorf("task should be deleted by %s", userID)
		}
	}
}

func TestListTasks_AssigneeMe(t *testing.T) {
	svc, st := newFixture()
	res, err := svc.ListTasks(context.Background(), "kid", "proj-1", model.TaskFilter{AssigneeID: AssigneeMe}, firstPage)
	if err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	if st.lastFilter.AssigneeID != "kid" {
		t.Errorf("assignee filter = %q, want kid", st.lastFilter.AssigneeID)
	}
	if res.Count != 1 || res.Items[0].ID != "task-1" {
		t.Errorf("unexpected result: %+v", res)
	}

	_, err = svc.ListTasks(context.Background(), "kid", "proj-1", model.TaskFilter{Status: "blocked"}, firstPage)
	assertFieldError(t, err, "status")
}

// --- コメント ---

func TestCreateComment_AnyMember(t *testing.T) {
	svc, _ := newFixture()
	c, err := svc.CreateComment(context.Background(), "kid", "task-1", "<p>終わった!</p>")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}
	if c.Body != "終わった!" || c.AuthorID != "kid" {
		t.Errorf("unexpected comment: %+v", c)
	}
	if c.AuthorName == "" {
		t.Error("author name should be filled")
	}
}

func TestCreateComment_EmptyAfterSanitize(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.CreateComment(context.Background(), "kid", "task-1", "<img src=x onerror=alert(1)>  ")
	assertFieldError(t, err, "body")
}

func TestCommentPermissions(t *testing.T) {
	ctx := context.Background()
	seed := func(st *store) {
		st.comments["c-1"] = &model.Comment{ID: "c-1", TaskID: "task-1", AuthorID: "kid", Body: "hi"}
	}

	svc, st := newFixture()
	seed(st)
	_, err := svc.UpdateComment(ctx, "org", "c-1", "edit")
	assertCode(t, err, model.ErrCodePermissionDenied)

	c, err := svc.UpdateComment(ctx, "kid", "c-1", "edited")
	if err != nil {
		t.Fatalf("author should update own comment: %v", err)
	}
	if c.Body != "edited" {
		t.Errorf("body = %q, want edited", c.Body)
	}

	err = svc.DeleteComment(ctx, "mom", "c-1")
	assertCode(t, err, model.ErrCodePermissionDenied)

	if err := svc.DeleteComment(ctx, "org", "c-1"); err != nil {
		t.Fatalf("organizer should delete any comment: %v", err)
	}

	svc, st = newFixture()
	seed(st)
	if err := svc.DeleteComment(ctx, "kid", "c-1"); err != nil {
		t.Fatalf("author should delete own comment: %v", err)
	}

	_, err = svc.UpdateComment(ctx, "outsider", "c-1", "x")
	assertCode(t, err, model.ErrCodeCommentNotFound)
}
