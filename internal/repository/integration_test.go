package repository

import (
	"context"
	"database/sql"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/database"
	"github.com/hitoshi/familyhub/internal/model"
)

// setupIntegrationDB はマイグレーション済みのテスト用DBを返す。
// TEST_DATABASE_URL が未設定、または接続できない場合はスキップする。
func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE users, families CASCADE`); err != nil {
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, repo *PostgresUserRepo, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         email,
		PasswordHash: "hash",
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

func createTestFamily(t *testing.T, repo *PostgresFamilyRepo, organizer *model.User) *model.Family {
	t.Helper()
	now := time.Now().UTC()
	f := &model.Family{ID: uuid.New().String(), Name: "F-" + organizer.Name, CreatedBy: organizer.ID, CreatedAt: now, UpdatedAt: now}
	m := &model.FamilyMember{ID: uuid.New().String(), FamilyID: f.ID, UserID: organizer.ID, Role: model.RoleOrganizer, JoinedAt: now}
	if err := repo.CreateWithOrganizer(context.Background(), f, m); err != nil {
		t.Fatalf("家族作成に失敗: %v", err)
	}
	return f
}

func createTestInvitation(t *testing.T, repo *PostgresInvitationRepo, familyID, inviterID, email string) *model.Invitation {
	t.Helper()
	return createTestInvitationExpiring(t, repo, familyID, inviterID, email, time.Now().UTC().Add(time.Hour))
}

func createTestInvitationExpiring(t *testing.T, repo *PostgresInvitationRepo, familyID, inviterID, email string, expiresAt time.Time) *model.Invitation {
	t.Helper()
	inv := &model.Invitation{
		ID: uuid.New().String(), FamilyID: familyID, Email: email, Role: model.RoleChild,
		Token: uuid.New().String(), Status: model.InvitationPending, InvitedBy: inviterID,
		ExpiresAt: expiresAt, CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("招待作成に失敗: %v", err)
	}
	return inv
}

// joinTestFamily は招待の承諾を経由してuserを家族に追加する。
func joinTestFamily(t *testing.T, repo *PostgresInvitationRepo, family *model.Family, inviter, user *model.User) {
	t.Helper()
	inv := createTestInvitation(t, repo, family.ID, inviter.ID, user.Email)
	now := time.Now().UTC()
	if err := repo.Accept(context.Background(), inv.ID, &model.FamilyMember{
		ID: uuid.New().String(), FamilyID: family.ID, UserID: user.ID, Role: inv.Role, JoinedAt: now,
	}, now); err != nil {
		t.Fatalf("招待の承諾に失敗: %v", err)
	}
}

func createTestProject(t *testing.T, repo *PostgresProjectRepo, familyID, creatorID, name string, createdAt time.Time) *model.Project {
	t.Helper()
	p := &model.Project{
		ID: uuid.New().String(), FamilyID: familyID, Name: name, Status: model.ProjectActive,
		CreatedBy: creatorID, CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("プロジェクト作成に失敗: %v", err)
	}
	return p
}

// createTestSprint はstartから2週間のplannedスプリントを作成する。
func createTestSprint(t *testing.T, repo *PostgresSprintRepo, projectID, name string, start time.Time) *model.Sprint {
	t.Helper()
	now := time.Now().UTC()
	s := &model.Sprint{
		ID: uuid.New().String(), ProjectID: projectID, Name: name,
		StartDate: start, EndDate: start.AddDate(0, 0, 13), Status: model.SprintPlanned,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("スプリント作成に失敗: %v", err)
	}
	return s
}

// createTestTask は未設定の項目を既定値で補ってタスクを作成する。
func createTestTask(t *testing.T, repo *PostgresTaskRepo, task *model.Task) *model.Task {
	t.Helper()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.TaskTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.UpdatedAt = task.CreatedAt
	if err := repo.Create(context.Background(), task); err != nil {
		t.Fatalf("タスク作成に失敗: %v", err)
	}
	return task
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func taskIDs(tasks []*model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func projectNames(projects []*model.Project) []string {
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names
}

func assertIDs(t *testing.T, label string, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}
