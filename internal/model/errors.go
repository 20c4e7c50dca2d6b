// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, family, project, system
	Action   string // ユーザー向け対処方法

	// RetryAfter は再試行可能になるまでの秒数。0の場合はRetry-Afterヘッダを付与しない。
	RetryAfter int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// auth
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeOTPExpired          = "OTP_EXPIRED"
	ErrCodeOTPInvalid          = "OTP_INVALID"
	ErrCodeAlreadyVerified     = "ALREADY_VERIFIED"
	ErrCodeOTPResendThrottled  = "OTP_RESEND_THROTTLED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeOrganizerMustLeave  = "ORGANIZER_MUST_TRANSFER_BEFORE_WITHDRAW"

	// family
	ErrCodeAlreadyInFamily         = "ALREADY_IN_FAMILY"
	ErrCodeFamilyNotFound          = "FAMILY_NOT_FOUND"
	ErrCodePermissionDenied        = "PERMISSION_DENIED"
	ErrCodeMemberNotFound          = "MEMBER_NOT_FOUND"
	ErrCodeOrganizerRoleChange     = "ORGANIZER_ROLE_CHANGE"
	ErrCodeOrganizerMustTransfer   = "ORGANIZER_MUST_TRANSFER"
	ErrCodeAlreadyMember           = "ALREADY_MEMBER"
	ErrCodeInvitationExists        = "INVITATION_EXISTS"
	ErrCodeInvitationNotFound      = "INVITATION_NOT_FOUND"
	ErrCodeInvitationNotPending    = "INVITATION_NOT_PENDING"
	ErrCodeInvitationExpired       = "INVITATION_EXPIRED"
	ErrCodeInvitationEmailMismatch = "INVITATION_EMAIL_MISMATCH"
	ErrCodeNotInFamily             = "NOT_IN_FAMILY"

	// project
	ErrCodeFamilyRequired          = "FAMILY_REQUIRED"
	ErrCodeProjectNotFound         = "PROJECT_NOT_FOUND"
	ErrCodeSprintNotFound          = "SPRINT_NOT_FOUND"
	ErrCodeTaskNotFound            = "TASK_NOT_FOUND"
	ErrCodeCommentNotFound         = "COMMENT_NOT_FOUND"
	ErrCodeSprintAlreadyActive     = "SPRINT_ALREADY_ACTIVE"
	ErrCodeInvalidSprintTransition = "INVALID_SPRINT_TRANSITION"
	ErrCodeInvalidPage             = "INVALID_PAGE"

	// system
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewOTPExpiredError は認証コードが存在しない（期限切れ・試行回数超過）場合のエラーを生成する。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPExpired,
		Message:  "認証コードの有効期限が切れています。",
		Category: "auth",
		Action:   "認証コードを再送信してください。",
	}
}

// NewOTPInvalidError は認証コード不一致エラーを生成する。
func NewOTPInvalidError(remaining int) *APIError {
	return &APIError{
		Code:     ErrCodeOTPInvalid,
		Message:  fmt.Sprintf("認証コードが正しくありません（残り%d回）。", remaining),
		Category: "auth",
		Action:   "メールに記載された6桁のコードを入力してください。",
	}
}

// NewAlreadyVerifiedError は認証済みユーザーへの再送信エラーを生成する。
func NewAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVerified,
		Message:  "このメールアドレスは既に認証済みです。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewOTPResendThrottledError は再送信のクールダウン中エラーを生成する。
func NewOTPResendThrottledError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:       ErrCodeOTPResendThrottled,
		Message:    fmt.Sprintf("認証コードの再送信は%d秒後に可能です。", retryAfterSeconds),
		Category:   "auth",
		Action:     "しばらく待ってから再度お試しください。",
		RetryAfter: retryAfterSeconds,
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailNotVerifiedError はメール未認証ユーザーのログインエラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "メールアドレスが認証されていません。",
		Category: "auth",
		Action:   "メールに記載された認証コードを入力してください。",
	}
}

// NewTokenInvalidError は無効なトークンエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewOrganizerMustTransferBeforeWithdrawError は他メンバーがいるオーガナイザーの退会エラーを生成する。
func NewOrganizerMustTransferBeforeWithdrawError() *APIError {
	return &APIError{
		Code:     ErrCodeOrganizerMustLeave,
		Message:  "他のメンバーがいる家族のオーガナイザーは退会できません。",
		Category: "auth",
		Action:   "オーガナイザーを他のメンバーに引き継いでから退会してください。",
	}
}

// NewAlreadyInFamilyError は既に家族に所属している場合のエラーを生成する。
func NewAlreadyInFamilyError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyInFamily,
		Message:  "既に家族に所属しています。",
		Category: "family",
		Action:   "別の家族に移る場合は招待から切り替えを行ってください。",
	}
}

// NewFamilyNotFoundError は家族未所属エラーを生成する。
func NewFamilyNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFamilyNotFound,
		Message:  "所属している家族がありません。",
		Category: "family",
		Action:   "家族を作成するか、招待を受け入れてください。",
	}
}

// NewPermissionDeniedError は権限不足エラーを生成する。
func NewPermissionDeniedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "family",
		Action:   "オーガナイザーに依頼してください。",
	}
}

// NewMemberNotFoundError はメンバー未検出エラーを生成する。
func NewMemberNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたメンバーが見つかりません: %s", userID),
		Category: "family",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewOrganizerRoleChangeError はオーガナイザー自身の役割変更エラーを生成する。
func NewOrganizerRoleChangeError() *APIError {
	return &APIError{
		Code:     ErrCodeOrganizerRoleChange,
		Message:  "オーガナイザーは自分の役割を変更できません。",
		Category: "family",
		Action:   "他のメンバーをオーガナイザーに指定して引き継いでください。",
	}
}

// NewOrganizerMustTransferError は他メンバーがいる状態でのオーガナイザー離脱エラーを生成する。
func NewOrganizerMustTransferError() *APIError {
	return &APIError{
		Code:     ErrCodeOrganizerMustTransfer,
		Message:  "他のメンバーがいるため、オーガナイザーは家族を離れられません。",
		Category: "family",
		Action:   "オーガナイザーを他のメンバーに引き継いでください。",
	}
}

// NewAlreadyMemberError は招待先が既にメンバーである場合のエラーを生成する。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMember,
		Message:  "このユーザーは既に家族のメンバーです。",
		Category: "family",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewInvitationExistsError は保留中の招待が既に存在する場合のエラーを生成する。
func NewInvitationExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvitationExists,
		Message:  "このメールアドレスへの招待は既に送信されています。",
		Category: "family",
		Action:   "既存の招待を取り消してから再度招待してください。",
	}
}

// NewInvitationNotFoundError は招待未検出エラーを生成する。
func NewInvitationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInvitationNotFound,
		Message:  "招待が見つかりません。",
		Category: "family",
		Action:   "招待リンクを確認してください。",
	}
}

// NewInvitationNotPendingError は応答済みの招待に対する操作エラーを生成する。
func NewInvitationNotPendingError(status InvitationStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvitationNotPending,
		Message:  fmt.Sprintf("この招待は既に処理されています: %s", status),
		Category: "family",
		Action:   "新しい招待を依頼してください。",
	}
}

// NewInvitationExpiredError は期限切れ招待エラーを生成する。
func NewInvitationExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeInvitationExpired,
		Message:  "招待の有効期限が切れています。",
		Category: "family",
		Action:   "新しい招待を依頼してください。",
	}
}

// NewInvitationEmailMismatchError は招待先メールアドレスと異なるユーザーによる操作エラーを生成する。
func NewInvitationEmailMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeInvitationEmailMismatch,
		Message:  "この招待は別のメールアドレス宛てです。",
		Category: "family",
		Action:   "招待されたメールアドレスでログインしてください。",
	}
}

// NewNotInFamilyError は家族切り替え時に現在の所属がない場合のエラーを生成する。
func NewNotInFamilyError() *APIError {
	return &APIError{
		Code:     ErrCodeNotInFamily,
		Message:  "現在所属している家族がないため切り替えできません。",
		Category: "family",
		Action:   "招待を受け入れてください。",
	}
}

// NewFamilyRequiredError は家族未所属ユーザーによるプロジェクト操作エラーを生成する。
func NewFamilyRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFamilyRequired,
		Message:  "この操作には家族への所属が必要です。",
		Category: "project",
		Action:   "家族を作成するか、招待を受け入れてください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", id),
		Category: "project",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewSprintNotFoundError はスプリント未検出エラーを生成する。
func NewSprintNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSprintNotFound,
		Message:  fmt.Sprintf("指定されたスプリントが見つかりません: %s", id),
		Category: "project",
		Action:   "スプリントIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", id),
		Category: "project",
		Action:   "タスクIDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", id),
		Category: "project",
		Action:   "コメントIDを確認してください。",
	}
}

// NewSprintAlreadyActiveError は同一プロジェクトに実行中スプリントがある場合のエラーを生成する。
func NewSprintAlreadyActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeSprintAlreadyActive,
		Message:  "このプロジェクトには既に実行中のスプリントがあります。",
		Category: "project",
		Action:   "実行中のスプリントを完了してから開始してください。",
	}
}

// NewInvalidSprintTransitionError はスプリントの不正な状態遷移エラーを生成する。
func NewInvalidSprintTransitionError(from, to SprintStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSprintTransition,
		Message:  fmt.Sprintf("スプリントを %s から %s に変更できません。", from, to),
		Category: "project",
		Action:   "スプリントは planned → active → completed の順に進めてください。",
	}
}

// NewInvalidPageError は存在しないページ指定エラーを生成する。
func NewInvalidPageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  "無効なページです。",
		Category: "validation",
		Action:   "ページ番号を確認してください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    "リクエストが多すぎます。",
		Category:   "system",
		Action:     fmt.Sprintf("%d秒ほど待ってから再度お試しください。", retryAfterSeconds),
		RetryAfter: retryAfterSeconds,
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NonFieldErrorsKey は特定フィールドに紐付かない検証エラーのキー。
const NonFieldErrorsKey = "non_field_errors"

// ValidationError はフィールド単位の入力検証エラーを表す。
// レスポンスでは {"field": ["message"]} 形式で返却される。
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError は1件のフィールドエラーを持つValidationErrorを生成する。
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add はフィールドにエラーメッセージを追加する。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors はエラーが1件以上あるかを返す。
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
