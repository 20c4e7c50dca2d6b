package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/familyhub/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewOTPExpiredError(), http.StatusBadRequest},
		{model.NewOTPInvalidError(3), http.StatusBadRequest},
		{model.NewAlreadyVerifiedError(), http.StatusBadRequest},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewTokenInvalidError(), http.StatusUnauthorized},
		{model.NewEmailNotVerifiedError(), http.StatusForbidden},
		{model.NewPermissionDeniedError("x"), http.StatusForbidden},
		{model.NewFamilyRequiredError(), http.StatusForbidden},
		{model.NewInvitationEmailMismatchError(), http.StatusForbidden},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewProjectNotFoundError("p"), http.StatusNotFound},
		{model.NewInvalidPageError(), http.StatusNotFound},
		{model.NewAlreadyInFamilyError(), http.StatusConflict},
		{model.NewOrganizerMustTransferError(), http.StatusConflict},
		{model.NewOrganizerMustTransferBeforeWithdrawError(), http.StatusConflict},
		{model.NewInvitationNotPendingError(model.InvitationAccepted), http.StatusConflict},
		{model.NewSprintAlreadyActiveError(), http.StatusConflict},
		{model.NewInvalidSprintTransitionError(model.SprintCompleted, model.SprintActive), http.StatusConflict},
		{model.NewInvitationExpiredError(), http.StatusGone},
		{model.NewOTPResendThrottledError(30), http.StatusTooManyRequests},
		{&model.APIError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_ValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, model.NewValidationError("email", "登録済みです。"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body["email"]) != 1 {
		t.Errorf("body = %v, want email error", body)
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, errors.Join(errors.New("context"), model.NewOTPResendThrottledError(42)))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After = %q, want %q", got, "42")
	}
}

func TestHandleServiceError_UnknownError_Returns500WithoutDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("internal error details leaked: %s", w.Body.String())
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInternal)
	}
}

func TestBind_InvalidJSON_ReturnsNonFieldError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()

	var dst familyNameRequest
	err := bind(w, req, &dst)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *model.ValidationError, got %v", err)
	}
	if _, ok := verr.Fields[model.NonFieldErrorsKey]; !ok {
		t.Errorf("fields = %v, want %s", verr.Fields, model.NonFieldErrorsKey)
	}
}

func TestBind_EmptyBody_RunsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	w := httptest.NewRecorder()

	var dst familyNameRequest
	err := bind(w, req, &dst)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *model.ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Errorf("fields = %v, want name", verr.Fields)
	}
}

func TestOptional_DistinguishesMissingNullAndValue(t *testing.T) {
	var req patchTaskRequest
	if err := json.Unmarshal([]byte(`{"assignee_id": null, "sprint_id": "sprint-1"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !req.AssigneeID.Set || req.AssigneeID.Value != nil {
		t.Errorf("assignee_id = %+v, want set to null", req.AssigneeID)
	}
	if !req.SprintID.Set || req.SprintID.Value == nil || *req.SprintID.Value != "sprint-1" {
		t.Errorf("sprint_id = %+v, want sprint-1", req.SprintID)
	}
	if req.DueDate.Set {
		t.Errorf("due_date = %+v, want unset", req.DueDate)
	}
}
