package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/familyhub/internal/model"
)

// ErrorResponseBody はエラー応答のJSON本文。
// Categoryは原因の分類（auth, family, project など）、Actionは利用者が取るべき対処。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorをstatusCodeで書き込む。
// RetryAfterが正の値ならRetry-Afterヘッダー（秒）を付ける。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	writeErrorJSON(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationError はフィールド単位の検証エラーを400で書き込む。
// 本文は {"field": ["message", ...]}。
func WriteValidationError(w http.ResponseWriter, v *model.ValidationError) {
	writeErrorJSON(w, http.StatusBadRequest, v.Fields)
}

// WriteInternalServerError は500を書き込む。原因は呼び出し側でログに残すこと。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write error response", slog.String("error", err.Error()))
	}
}
