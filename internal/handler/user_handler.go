package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Me(ctx context.Context, userID string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, userID, name string) (*user.Profile, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	// Withdraw は所属家族から離脱したうえでユーザーを削除する。
	// 他のメンバーがいる家族のオーガナイザーは退会できない。
	Withdraw(ctx context.Context, userID string) error
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128,password"`
}

// UserHandler はログイン中ユーザー自身を操作するHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Me はユーザー情報と現在の所属を返す。
// GET /api/auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Me(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeResponse(profile))
}

// UpdateProfile は表示名を更新する。
// PATCH /api/auth/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeResponse(profile))
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
// POST /api/auth/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: "パスワードを変更しました。"})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/auth/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toMeResponse(p *user.Profile) meResponse {
	resp := meResponse{userResponse: toUserResponse(p.User)}
	if p.Membership != nil {
		resp.Membership = &membershipResponse{
			FamilyID: p.Membership.FamilyID,
			Role:     p.Membership.Role,
		}
	}
	return resp
}
