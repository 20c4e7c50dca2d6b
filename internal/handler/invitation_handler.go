package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/model"
)

// InvitationServiceInterface は招待を受け取る側のハンドラーが必要とするサービスインターフェース。
type InvitationServiceInterface interface {
	PreviewInvitation(ctx context.Context, token string) (*model.InvitationDetail, error)
	AcceptInvitation(ctx context.Context, userID, token string) (*family.Detail, error)
	// SwitchFamily は現在の家族から離脱し、招待先の家族に参加する。
	SwitchFamily(ctx context.Context, userID, token string) (*family.Detail, error)
	DeclineInvitation(ctx context.Context, userID, token string) error
}

// InvitationHandler は /api/invitations/{token} 配下のHTTPハンドラー。
type InvitationHandler struct {
	service InvitationServiceInterface
	now     func() time.Time
}

// NewInvitationHandler はInvitationHandlerを生成する。
func NewInvitationHandler(service InvitationServiceInterface) *InvitationHandler {
	return &InvitationHandler{service: service, now: time.Now}
}

// Preview は招待の内容を返す。期限切れの保留中招待はexpiredとして表示する。
// GET /api/invitations/{token}
func (h *InvitationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	token, ok := pathUUID(w, r, "token", invitationNotFound)
	if !ok {
		return
	}

	detail, err := h.service.PreviewInvitation(r.Context(), token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, invitationPreviewResponse{
		FamilyName:  detail.FamilyName,
		InviterName: detail.InviterName,
		Email:       detail.Email,
		Role:        detail.Role,
		Status:      detail.EffectiveStatus(h.now()),
		ExpiresAt:   detail.ExpiresAt,
	})
}

// Accept は招待を承諾し、家族に参加する。
// POST /api/invitations/{token}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, h.service.AcceptInvitation)
}

// Switch は現在の家族から招待先の家族へ移る。
// POST /api/invitations/{token}/switch
func (h *InvitationHandler) Switch(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, h.service.SwitchFamily)
}

func (h *InvitationHandler) join(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, token string) (*family.Detail, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	token, ok := pathUUID(w, r, "token", invitationNotFound)
	if !ok {
		return
	}

	detail, err := fn(r.Context(), userID, token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFamilyResponse(detail.Family, detail.Members))
}

// Decline は招待を辞退する。
// POST /api/invitations/{token}/decline
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	token, ok := pathUUID(w, r, "token", invitationNotFound)
	if !ok {
		return
	}

	if err := h.service.DeclineInvitation(r.Context(), userID, token); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: "招待を辞退しました。"})
}
