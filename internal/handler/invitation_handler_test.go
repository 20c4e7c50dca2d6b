package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/model"
)

func invitationRequest(method, path, token string) *http.Request {
	req := withUserID(httptest.NewRequest(method, path, nil), "user-2")
	return withChiURLParam(req, "token", token)
}

func TestInvitationHandler_Preview_ExpiredPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockFamilyService{
		previewFn: func(ctx context.Context, token string) (*model.InvitationDetail, error) {
			if token != testInvitationToken {
				return nil, model.NewInvitationNotFoundError()
			}
			return &model.InvitationDetail{
				Invitation: model.Invitation{
					Email:     "hanako@example.com",
					Role:      model.RoleChild,
					Status:    model.InvitationPending,
					ExpiresAt: now.Add(-time.Minute),
				},
				FamilyName:  "Tanaka",
				InviterName: "Taro",
			}, nil
		},
	}
	h := NewInvitationHandler(svc)
	h.now = func() time.Time { return now }

	w := httptest.NewRecorder()
	h.Preview(w, invitationRequest(http.MethodGet, "/api/invitations/"+testInvitationToken, testInvitationToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body invitationPreviewResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Status != model.InvitationExpired {
		t.Errorf("status = %q, want expired", body.Status)
	}
	if body.FamilyName != "Tanaka" || body.InviterName != "Taro" || body.Role != model.RoleChild {
		t.Errorf("body = %+v", body)
	}
}

func TestInvitationHandler_Preview_UnknownToken(t *testing.T) {
	w := httptest.NewRecorder()
	NewInvitationHandler(&mockFamilyService{}).Preview(w, invitationRequest(http.MethodGet, "/api/invitations/nope", "nope"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestInvitationHandler_Accept_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"expired", model.NewInvitationExpiredError(), http.StatusGone},
		{"not pending", model.NewInvitationNotPendingError(model.InvitationRevoked), http.StatusConflict},
		{"email mismatch", model.NewInvitationEmailMismatchError(), http.StatusForbidden},
		{"already in family", model.NewAlreadyInFamilyError(), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockFamilyService{
				acceptFn: func(ctx context.Context, userID, token string) (*family.Detail, error) {
					if userID != "user-2" || token != testInvitationToken {
						t.Errorf("Accept(%q, %q)", userID, token)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return testDetail(), nil
				},
			}
			w := httptest.NewRecorder()
			NewInvitationHandler(svc).Accept(w, invitationRequest(http.MethodPost, "/api/invitations/"+testInvitationToken+"/accept", testInvitationToken))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestInvitationHandler_Switch(t *testing.T) {
	switched := false
	svc := &mockFamilyService{
		switchFn: func(ctx context.Context, userID, token string) (*family.Detail, error) {
			switched = true
			return testDetail(), nil
		},
		acceptFn: func(ctx context.Context, userID, token string) (*family.Detail, error) {
			t.Error("Accept should not be called for switch")
			return nil, nil
		},
	}
	w := httptest.NewRecorder()
	NewInvitationHandler(svc).Switch(w, invitationRequest(http.MethodPost, "/api/invitations/"+testInvitationToken+"/switch", testInvitationToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !switched {
		t.Error("expected SwitchFamily to be called")
	}
}

func TestInvitationHandler_Decline(t *testing.T) {
	svc := &mockFamilyService{
		declineFn: func(ctx context.Context, userID, token string) error {
			return model.NewInvitationNotPendingError(model.InvitationAccepted)
		},
	}
	w := httptest.NewRecorder()
	NewInvitationHandler(svc).Decline(w, invitationRequest(http.MethodPost, "/api/invitations/"+testInvitationToken+"/decline", testInvitationToken))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
