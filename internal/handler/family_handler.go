package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/model"
)

// FamilyServiceInterface は家族・メンバー・招待管理ハンドラーが必要とするサービスインターフェース。
type FamilyServiceInterface interface {
	Create(ctx context.Context, userID, name string) (*family.Detail, error)
	Get(ctx context.Context, userID string) (*family.Detail, error)
	Rename(ctx context.Context, userID, name string) (*family.Detail, error)
	Delete(ctx context.Context, userID string) error

	ListMembers(ctx context.Context, userID string) ([]model.MemberWithUser, error)
	ChangeRole(ctx context.Context, userID, targetUserID string, role model.Role) ([]model.MemberWithUser, error)
	RemoveMember(ctx context.Context, userID, targetUserID string) error
	// Leave は家族から離脱する。家族自体が削除された場合はtrueを返す。
	Leave(ctx context.Context, userID string) (bool, error)

	CreateInvitation(ctx context.Context, userID, email string, role model.Role) (*model.Invitation, error)
	ListInvitations(ctx context.Context, userID string) ([]*model.Invitation, error)
	RevokeInvitation(ctx context.Context, userID, invitationID string) error
}

type familyNameRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

type changeRoleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=organizer parent child"`
}

type createInvitationRequest struct {
	Email string     `json:"email" validate:"required,email,max=254"`
	Role  model.Role `json:"role" validate:"required,oneof=parent child"`
}

type leaveResponse struct {
	Detail        string `json:"detail"`
	FamilyDeleted bool   `json:"family_deleted"`
}

// FamilyHandler は /api/families/me 配下のHTTPハンドラー。
type FamilyHandler struct {
	service FamilyServiceInterface
	now     func() time.Time
}

// NewFamilyHandler はFamilyHandlerを生成する。
func NewFamilyHandler(service FamilyServiceInterface) *FamilyHandler {
	return &FamilyHandler{service: service, now: time.Now}
}

// Create は家族を作成し、呼び出し元をオーガナイザーとして登録する。
// POST /api/families
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req familyNameRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	detail, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFamilyResponse(detail.Family, detail.Members))
}

// Get は所属家族とメンバー一覧を返す。
// GET /api/families/me
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFamilyResponse(detail.Family, detail.Members))
}

// Rename は家族名を変更する。
// PATCH /api/families/me
func (h *FamilyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req familyNameRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	detail, err := h.service.Rename(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFamilyResponse(detail.Family, detail.Members))
}

// Delete は家族を削除する。
// DELETE /api/families/me
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers はメンバー一覧を返す。
// GET /api/families/me/members
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponses(members))
}

// ChangeRole はメンバーの役割を変更する。organizerを指定した場合は権限の委譲になる。
// PATCH /api/families/me/members/{user_id}
func (h *FamilyHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	memberID, ok := pathUUID(w, r, "user_id", model.NewMemberNotFoundError)
	if !ok {
		return
	}

	var req changeRoleRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	members, err := h.service.ChangeRole(r.Context(), userID, memberID, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponses(members))
}

// RemoveMember はメンバーを家族から外す。
// DELETE /api/families/me/members/{user_id}
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	memberID, ok := pathUUID(w, r, "user_id", model.NewMemberNotFoundError)
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID, memberID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave は家族から離脱する。
// POST /api/families/me/leave
func (h *FamilyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Leave(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	detail := "家族から離脱しました。"
	if deleted {
		detail = "メンバーがいなくなったため家族を削除しました。"
	}
	writeJSON(w, http.StatusOK, leaveResponse{Detail: detail, FamilyDeleted: deleted})
}

// CreateInvitation は招待を作成し、招待メールを送信する。
// POST /api/families/me/invitations
func (h *FamilyHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createInvitationRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	inv, err := h.service.CreateInvitation(r.Context(), userID, req.Email, req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvitationResponse(inv, h.now()))
}

// ListInvitations は家族の招待一覧を新しい順で返す。
// GET /api/families/me/invitations
func (h *FamilyHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, mapSlice(invitations, func(inv *model.Invitation) invitationResponse {
		return toInvitationResponse(inv, now)
	}))
}

// RevokeInvitation は保留中の招待を取り消す。
// DELETE /api/families/me/invitations/{id}
func (h *FamilyHandler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	invitationID, ok := pathUUID(w, r, "id", invitationNotFound)
	if !ok {
		return
	}

	if err := h.service.RevokeInvitation(r.Context(), userID, invitationID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
