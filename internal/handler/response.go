// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/familyhub/internal/middleware"
	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/validation"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

const msgInvalidJSON = "リクエストボディの形式が正しくありません。"

var requestValidator = validation.New()

// writeJSON は任意の値をJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteValidationError(w, verr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeOTPExpired, model.ErrCodeOTPInvalid, model.ErrCodeAlreadyVerified:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case model.ErrCodeEmailNotVerified, model.ErrCodePermissionDenied,
		model.ErrCodeInvitationEmailMismatch, model.ErrCodeFamilyRequired:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeFamilyNotFound, model.ErrCodeMemberNotFound,
		model.ErrCodeInvitationNotFound, model.ErrCodeProjectNotFound, model.ErrCodeSprintNotFound,
		model.ErrCodeTaskNotFound, model.ErrCodeCommentNotFound, model.ErrCodeInvalidPage:
		return http.StatusNotFound
	case model.ErrCodeAlreadyInFamily, model.ErrCodeOrganizerRoleChange, model.ErrCodeOrganizerMustTransfer,
		model.ErrCodeOrganizerMustLeave, model.ErrCodeAlreadyMember, model.ErrCodeInvitationExists,
		model.ErrCodeInvitationNotPending, model.ErrCodeNotInFamily,
		model.ErrCodeSprintAlreadyActive, model.ErrCodeInvalidSprintTransition:
		return http.StatusConflict
	case model.ErrCodeInvitationExpired:
		return http.StatusGone
	case model.ErrCodeOTPResendThrottled, model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 不正なJSONはnon_field_errorsのValidationErrorとして返す。空ボディは空オブジェクトとして扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError(model.NonFieldErrorsKey, msgInvalidJSON)
	}
	return nil
}

// bind はリクエストボディをデコードし、validateタグで検証する。
func bind(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return requestValidator.Struct(dst)
}

// requireUserID はコンテキストから認証済みユーザーIDを取得する。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}
