package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/familyhub/internal/auth"
	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/middleware"
	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
	"github.com/hitoshi/familyhub/internal/user"
)

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// パスパラメータやIDフィルタに渡すテスト用のUUID。
const (
	testProjectID       = "0b6f3d5e-7c1a-4e2b-9a8d-1f2e3d4c5b6a"
	testSprintID        = "1c7e4f6a-8d2b-4f3c-8b9e-2a3f4e5d6c7b"
	testTaskID          = "2d8f5a7b-9e3c-4a4d-9caf-3b4a5f6e7d8c"
	testCommentID       = "3e9a6b8c-af4d-4b5e-8db0-4c5b6a7f8e9d"
	testMemberID        = "4fab7c9d-b05e-4c6f-9ec1-5d6c7b8a9fae"
	testInvitationID    = "5abc8dae-c16f-4d7a-8fd2-6e7d8c9baf0b"
	testInvitationToken = "6bcd9ebf-d27a-4e8b-9ae3-7f8e9dacb01c"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn  func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	verifyOTPFn func(ctx context.Context, email, code string) (*auth.AuthResult, error)
	resendOTPFn func(ctx context.Context, email string) error
	loginFn     func(ctx context.Context, email, password string) (*auth.AuthResult, error)
	refreshFn   func(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	logoutFn    func(ctx context.Context, userID, refreshToken string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.User{ID: "user-1", Email: in.Email, Name: in.Name}, nil
}

func (m *mockAuthService) VerifyOTP(ctx context.Context, email, code string) (*auth.AuthResult, error) {
	if m.verifyOTPFn != nil {
		return m.verifyOTPFn(ctx, email, code)
	}
	return nil, nil
}

func (m *mockAuthService) ResendOTP(ctx context.Context, email string) error {
	if m.resendOTPFn != nil {
		return m.resendOTPFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, refreshToken)
	}
	return nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	meFn             func(ctx context.Context, userID string) (*user.Profile, error)
	updateProfileFn  func(ctx context.Context, userID, name string) (*user.Profile, error)
	changePasswordFn func(ctx context.Context, userID, current, next string) error
	withdrawFn       func(ctx context.Context, userID string) error
}

func (m *mockUserService) Me(ctx context.Context, userID string) (*user.Profile, error) {
	if m.meFn != nil {
		return m.meFn(ctx, userID)
	}
	return &user.Profile{User: &model.User{ID: userID}}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID, name string) (*user.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, name)
	}
	return &user.Profile{User: &model.User{ID: userID, Name: name}}, nil
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, current, next)
	}
	return nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// mockFamilyService はFamilyServiceInterfaceとInvitationServiceInterfaceのモック実装。
type mockFamilyService struct {
	createFn           func(ctx context.Context, userID, name string) (*family.Detail, error)
	getFn              func(ctx context.Context, userID string) (*family.Detail, error)
	renameFn           func(ctx context.Context, userID, name string) (*family.Detail, error)
	deleteFn           func(ctx context.Context, userID string) error
	listMembersFn      func(ctx context.Context, userID string) ([]model.MemberWithUser, error)
	changeRoleFn       func(ctx context.Context, userID, targetUserID string, role model.Role) ([]model.MemberWithUser, error)
	removeMemberFn     func(ctx context.Context, userID, targetUserID string) error
	leaveFn            func(ctx context.Context, userID string) (bool, error)
	createInvitationFn func(ctx context.Context, userID, email string, role model.Role) (*model.Invitation, error)
	listInvitationsFn  func(ctx context.Context, userID string) ([]*model.Invitation, error)
	revokeInvitationFn func(ctx context.Context, userID, invitationID string) error

	previewFn func(ctx context.Context, token string) (*model.InvitationDetail, error)
	acceptFn  func(ctx context.Context, userID, token string) (*family.Detail, error)
	switchFn  func(ctx context.Context, userID, token string) (*family.Detail, error)
	declineFn func(ctx context.Context, userID, token string) error
}

func testDetail() *family.Detail {
	return &family.Detail{
		Family: &model.Family{ID: "fam-1", Name: "Tanaka", CreatedBy: "user-1"},
		Members: []model.MemberWithUser{{
			FamilyMember: model.FamilyMember{FamilyID: "fam-1", UserID: "user-1", Role: model.RoleOrganizer},
			UserName:     "Taro",
			UserEmail:    "taro@example.com",
		}},
	}
}

func (m *mockFamilyService) Create(ctx context.Context, userID, name string) (*family.Detail, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, name)
	}
	return testDetail(), nil
}

func (m *mockFamilyService) Get(ctx context.Context, userID string) (*family.Detail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return testDetail(), nil
}

func (m *mockFamilyService) Rename(ctx context.Context, userID, name string) (*family.Detail, error) {
	if m.renameFn != nil {
		return m.renameFn(ctx, userID, name)
	}
	return testDetail(), nil
}

func (m *mockFamilyService) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

func (m *mockFamilyService) ListMembers(ctx context.Context, userID string) ([]model.MemberWithUser, error) {
	if m.listMembersFn != nil {
		return m.listMembersFn(ctx, userID)
	}
	return testDetail().Members, nil
}

func (m *mockFamilyService) ChangeRole(ctx context.Context, userID, targetUserID string, role model.Role) ([]model.MemberWithUser, error) {
	if m.changeRoleFn != nil {
		return m.changeRoleFn(ctx, userID, targetUserID, role)
	}
	return testDetail().Members, nil
}

func (m *mockFamilyService) RemoveMember(ctx context.Context, userID, targetUserID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, userID, targetUserID)
	}
	return nil
}

func (m *mockFamilyService) Leave(ctx context.Context, userID string) (bool, error) {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, userID)
	}
	return false, nil
}

func (m *mockFamilyService) CreateInvitation(ctx context.Context, userID, email string, role model.Role) (*model.Invitation, error) {
	if m.createInvitationFn != nil {
		return m.createInvitationFn(ctx, userID, email, role)
	}
	return &model.Invitation{ID: "inv-1", Email: email, Role: role, Status: model.InvitationPending}, nil
}

func (m *mockFamilyService) ListInvitations(ctx context.Context, userID string) ([]*model.Invitation, error) {
	if m.listInvitationsFn != nil {
		return m.listInvitationsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockFamilyService) RevokeInvitation(ctx context.Context, userID, invitationID string) error {
	if m.revokeInvitationFn != nil {
		return m.revokeInvitationFn(ctx, userID, invitationID)
	}
	return nil
}

func (m *mockFamilyService) PreviewInvitation(ctx context.Context, token string) (*model.InvitationDetail, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, token)
	}
	return nil, model.NewInvitationNotFoundError()
}

func (m *mockFamilyService) AcceptInvitation(ctx context.Context, userID, token string) (*family.Detail, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, userID, token)
	}
	return testDetail(), nil
}

func (m *mockFamilyService) SwitchFamily(ctx context.Context, userID, token string) (*family.Detail, error) {
	if m.switchFn != nil {
		return m.switchFn(ctx, userID, token)
	}
	return testDetail(), nil
}

func (m *mockFamilyService) DeclineInvitation(ctx context.Context, userID, token string) error {
	if m.declineFn != nil {
		return m.declineFn(ctx, userID, token)
	}
	return nil
}

// mockProjectService はプロジェクト関連の4つのサービスインターフェースのモック実装。
type mockProjectService struct {
	listProjectsFn  func(ctx context.Context, userID string, filter model.ProjectFilter, page model.Page) (*project.PageResult[*model.Project], error)
	createProjectFn func(ctx context.Context, userID string, in project.ProjectInput) (*model.Project, error)
	getProjectFn    func(ctx context.Context, userID, projectID string) (*model.Project, error)
	updateProjectFn func(ctx context.Context, userID, projectID string, patch project.ProjectPatch) (*model.Project, error)
	deleteProjectFn func(ctx context.Context, userID, projectID string) error

	listSprintsFn    func(ctx context.Context, userID, projectID string, page model.Page) (*project.PageResult[*model.Sprint], error)
	createSprintFn   func(ctx context.Context, userID, projectID string, in project.SprintInput) (*model.Sprint, error)
	getSprintFn      func(ctx context.Context, userID, sprintID string) (*model.Sprint, error)
	updateSprintFn   func(ctx context.Context, userID, sprintID string, patch project.SprintPatch) (*model.Sprint, error)
	deleteSprintFn   func(ctx context.Context, userID, sprintID string) error
	startSprintFn    func(ctx context.Context, userID, sprintID string) (*model.Sprint, error)
	completeSprintFn func(ctx context.Context, userID, sprintID string) (*project.SprintCompletion, error)

	listTasksFn  func(ctx context.Context, userID, projectID string, filter model.TaskFilter, page model.Page) (*project.PageResult[*model.Task], error)
	createTaskFn func(ctx context.Context, userID, projectID string, in project.TaskInput) (*model.Task, error)
	getTaskFn    func(ctx context.Context, userID, taskID string) (*model.Task, error)
	updateTaskFn func(ctx context.Context, userID, taskID string, patch project.TaskPatch) (*model.Task, error)
	deleteTaskFn func(ctx context.Context, userID, taskID string) error

	listCommentsFn  func(ctx context.Context, userID, taskID string, page model.Page) (*project.PageResult[*model.Comment], error)
	createCommentFn func(ctx context.Context, userID, taskID, body string) (*model.Comment, error)
	updateCommentFn func(ctx context.Context, userID, commentID, body string) (*model.Comment, error)
	deleteCommentFn func(ctx context.Context, userID, commentID string) error
}

func (m *mockProjectService) ListProjects(ctx context.Context, userID string, filter model.ProjectFilter, page model.Page) (*project.PageResult[*model.Project], error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx, userID, filter, page)
	}
	return &project.PageResult[*model.Project]{}, nil
}

func (m *mockProjectService) CreateProject(ctx context.Context, userID string, in project.ProjectInput) (*model.Project, error) {
	if m.createProjectFn != nil {
		return m.createProjectFn(ctx, userID, in)
	}
	return &model.Project{ID: "proj-1", Name: in.Name, Status: model.ProjectActive, CreatedBy: userID}, nil
}

func (m *mockProjectService) GetProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if m.getProjectFn != nil {
		return m.getProjectFn(ctx, userID, projectID)
	}
	return &model.Project{ID: projectID}, nil
}

func (m *mockProjectService) UpdateProject(ctx context.Context, userID, projectID string, patch project.ProjectPatch) (*model.Project, error) {
	if m.updateProjectFn != nil {
		return m.updateProjectFn(ctx, userID, projectID, patch)
	}
	return &model.Project{ID: projectID}, nil
}

func (m *mockProjectService) DeleteProject(ctx context.Context, userID, projectID string) error {
	if m.deleteProjectFn != nil {
		return m.deleteProjectFn(ctx, userID, projectID)
	}
	return nil
}

func (m *mockProjectService) ListSprints(ctx context.Context, userID, projectID string, page model.Page) (*project.PageResult[*model.Sprint], error) {
	if m.listSprintsFn != nil {
		return m.listSprintsFn(ctx, userID, projectID, page)
	}
	return &project.PageResult[*model.Sprint]{}, nil
}

func (m *mockProjectService) CreateSprint(ctx context.Context, userID, projectID string, in project.SprintInput) (*model.Sprint, error) {
	if m.createSprintFn != nil {
		return m.createSprintFn(ctx, userID, projectID, in)
	}
	return &model.Sprint{ID: "sprint-1", ProjectID: projectID, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate, Status: model.SprintPlanned}, nil
}

func (m *mockProjectService) GetSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error) {
	if m.getSprintFn != nil {
		return m.getSprintFn(ctx, userID, sprintID)
	}
	return &model.Sprint{ID: sprintID}, nil
}

func (m *mockProjectService) UpdateSprint(ctx context.Context, userID, sprintID string, patch project.SprintPatch) (*model.Sprint, error) {
	if m.updateSprintFn != nil {
		return m.updateSprintFn(ctx, userID, sprintID, patch)
	}
	return &model.Sprint{ID: sprintID}, nil
}

func (m *mockProjectService) DeleteSprint(ctx context.Context, userID, sprintID string) error {
	if m.deleteSprintFn != nil {
		return m.deleteSprintFn(ctx, userID, sprintID)
	}
	return nil
}

func (m *mockProjectService) StartSprint(ctx context.Context, userID, sprintID string) (*model.Sprint, error) {
	if m.startSprintFn != nil {
		return m.startSprintFn(ctx, userID, sprintID)
	}
	return &model.Sprint{ID: sprintID, Status: model.SprintActive}, nil
}

func (m *mockProjectService) CompleteSprint(ctx context.Context, userID, sprintID string) (*project.SprintCompletion, error) {
	if m.completeSprintFn != nil {
		return m.completeSprintFn(ctx, userID, sprintID)
	}
	return &project.SprintCompletion{Sprint: &model.Sprint{ID: sprintID, Status: model.SprintCompleted}}, nil
}

func (m *mockProjectService) ListTasks(ctx context.Context, userID, projectID string, filter model.TaskFilter, page model.Page) (*project.PageResult[*model.Task], error) {
	if m.listTasksFn != nil {
		return m.listTasksFn(ctx, userID, projectID, filter, page)
	}
	return &project.PageResult[*model.Task]{}, nil
}

func (m *mockProjectService) CreateTask(ctx context.Context, userID, projectID string, in project.TaskInput) (*model.Task, error) {
	if m.createTaskFn != nil {
		return m.createTaskFn(ctx, userID, projectID, in)
	}
	return &model.Task{ID: "task-1", ProjectID: projectID, Title: in.Title, DueDate: in.DueDate}, nil
}

func (m *mockProjectService) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	if m.getTaskFn != nil {
		return m.getTaskFn(ctx, userID, taskID)
	}
	return &model.Task{ID: taskID}, nil
}

func (m *mockProjectService) UpdateTask(ctx context.Context, userID, taskID string, patch project.TaskPatch) (*model.Task, error) {
	if m.updateTaskFn != nil {
		return m.updateTaskFn(ctx, userID, taskID, patch)
	}
	return &model.Task{ID: taskID}, nil
}

func (m *mockProjectService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if m.deleteTaskFn != nil {
		return m.deleteTaskFn(ctx, userID, taskID)
	}
	return nil
}

func (m *mockProjectService) ListComments(ctx context.Context, userID, taskID string, page model.Page) (*project.PageResult[*model.Comment], error) {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, userID, taskID, page)
	}
	return &project.PageResult[*model.Comment]{}, nil
}

func (m *mockProjectService) CreateComment(ctx context.Context, userID, taskID, body string) (*model.Comment, error) {
	if m.createCommentFn != nil {
		return m.createCommentFn(ctx, userID, taskID, body)
	}
	return &model.Comment{ID: "comment-1", TaskID: taskID, AuthorID: userID, Body: body}, nil
}

func (m *mockProjectService) UpdateComment(ctx context.Context, userID, commentID, body string) (*model.Comment, error) {
	if m.updateCommentFn != nil {
		return m.updateCommentFn(ctx, userID, commentID, body)
	}
	return &model.Comment{ID: commentID, AuthorID: userID, Body: body}, nil
}

func (m *mockProjectService) DeleteComment(ctx context.Context, userID, commentID string) error {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, userID, commentID)
	}
	return nil
}

var (
	_ AuthServiceInterface       = (*mockAuthService)(nil)
	_ UserServiceInterface       = (*mockUserService)(nil)
	_ FamilyServiceInterface     = (*mockFamilyService)(nil)
	_ InvitationServiceInterface = (*mockFamilyService)(nil)
	_ ProjectServiceInterface    = (*mockProjectService)(nil)
	_ SprintServiceInterface     = (*mockProjectService)(nil)
	_ TaskServiceInterface       = (*mockProjectService)(nil)
	_ CommentServiceInterface    = (*mockProjectService)(nil)
)
