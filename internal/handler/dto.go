package handler

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/project"
)

// dateLayout はスプリント期間とタスク期日の日付フォーマット。
const dateLayout = "2006-01-02"

// optional はPATCHリクエストで「未指定」「null」「値」を区別するJSONフィールド。
// encoding/jsonはnullの場合もUnmarshalJSONを呼ぶため、キーが存在すればSetがtrueになる。
type optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optional[T]) nullable() project.Nullable[T] {
	return project.Nullable[T]{Set: o.Set, Value: o.Value}
}

// parseDate はYYYY-MM-DD形式の日付を解釈する。不正な場合はverrにフィールドエラーを追加する。
func parseDate(verr *model.ValidationError, field, raw string) time.Time {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		verr.Add(field, "日付はYYYY-MM-DD形式で指定してください。")
		return time.Time{}
	}
	return d
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// --- ユーザー ---

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type membershipResponse struct {
	FamilyID string     `json:"family_id"`
	Role     model.Role `json:"role"`
}

type meResponse struct {
	userResponse
	Membership *membershipResponse `json:"membership"`
}

type authResponse struct {
	User    userResponse `json:"user"`
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// --- 家族・招待 ---

type memberResponse struct {
	UserID   string     `json:"user_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

func toMemberResponses(members []model.MemberWithUser) []memberResponse {
	res := make([]memberResponse, len(members))
	for i, m := range members {
		res[i] = memberResponse{
			UserID:   m.UserID,
			Name:     m.UserName,
			Email:    m.UserEmail,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	}
	return res
}

type familyResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	Members   []memberResponse `json:"members"`
}

func toFamilyResponse(f *model.Family, members []model.MemberWithUser) familyResponse {
	return familyResponse{
		ID:        f.ID,
		Name:      f.Name,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		Members:   toMemberResponses(members),
	}
}

type invitationResponse struct {
	ID        string                 `json:"id"`
	Email     string                 `json:"email"`
	Role      model.Role             `json:"role"`
	Status    model.InvitationStatus `json:"status"`
	InvitedBy string                 `json:"invited_by"`
	ExpiresAt time.Time              `json:"expires_at"`
	CreatedAt time.Time              `json:"created_at"`
}

func toInvitationResponse(inv *model.Invitation, now time.Time) invitationResponse {
	return invitationResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      inv.Role,
		Status:    inv.EffectiveStatus(now),
		InvitedBy: inv.InvitedBy,
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}

type invitationPreviewResponse struct {
	FamilyName  string                 `json:"family_name"`
	InviterName string                 `json:"inviter_name"`
	Email       string                 `json:"email"`
	Role        model.Role             `json:"role"`
	Status      model.InvitationStatus `json:"status"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// --- プロジェクト ---

type projectResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      model.ProjectStatus `json:"status"`
	CreatedBy   string              `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type sprintResponse struct {
	ID        string             `json:"id"`
	ProjectID string             `json:"project_id"`
	Name      string             `json:"name"`
	Goal      string             `json:"goal"`
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	Status    model.SprintStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toSprintResponse(s *model.Sprint) sprintResponse {
	return sprintResponse{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Name:      s.Name,
		Goal:      s.Goal,
		StartDate: s.StartDate.Format(dateLayout),
		EndDate:   s.EndDate.Format(dateLayout),
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type sprintCompletionResponse struct {
	sprintResponse
	MovedTasks int64 `json:"moved_tasks"`
}

type taskResponse struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"`
	SprintID    *string            `json:"sprint_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      model.TaskStatus   `json:"status"`
	Priority    model.TaskPriority `json:"priority"`
	AssigneeID  *string            `json:"assignee_id"`
	DueDate     *string            `json:"due_date"`
	CreatedBy   string             `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		SprintID:    t.SprintID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeID:  t.AssigneeID,
		DueDate:     formatDate(t.DueDate),
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type commentResponse struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:         c.ID,
		TaskID:     c.TaskID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Body:       c.Body,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// mapSlice はスライスの各要素をレスポンス型に変換する。
func mapSlice[S, D any](items []S, fn func(S) D) []D {
	res := make([]D, len(items))
	for i, item := range items {
		res[i] = fn(item)
	}
	return res
}
