package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/familyhub/internal/model"
)

const msgInvalidID = "IDの形式が正しくありません。"

// isUUID はsがハイフン区切りの36文字のUUIDかどうかを返す。
// uuid.Parseはurn:uuid:形式なども受け付けるが、uuid列への比較には使えないため長さで除外する。
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// pathUUID はURLパスパラメータnameをUUIDとして取り出す。
// 形式が不正なIDは存在しないリソースとして扱い、notFoundのエラーを書き込んでfalseを返す。
func pathUUID(w http.ResponseWriter, r *http.Request, name string, notFound func(id string) *model.APIError) (string, bool) {
	id := chi.URLParam(r, name)
	if !isUUID(id) {
		handleServiceError(w, r, notFound(id))
		return "", false
	}
	return id, true
}

// checkUUID はvalueが指定されていてUUIDでなければverrにfieldのエラーを追加する。
func checkUUID(verr *model.ValidationError, field string, value *string) {
	if value != nil && !isUUID(*value) {
		verr.Add(field, msgInvalidID)
	}
}

func invitationNotFound(string) *model.APIError {
	return model.NewInvitationNotFoundError()
}
