package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/familyhub/internal/auth"
	"github.com/hitoshi/familyhub/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	VerifyOTP(ctx context.Context, email, code string) (*auth.AuthResult, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128,password"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
}

// 桁数は設定値に依存するためサービス層で検証する。maxはconfig.MaxOTPLengthと一致させる。
type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric,max=10"`
}

type resendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// AuthHandler はメール+パスワード認証とJWT発行のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register は未検証ユーザーを作成し、確認コードをメール送信する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		User   userResponse `json:"user"`
		Detail string       `json:"detail"`
	}{
		User:   toUserResponse(user),
		Detail: "確認コードをメールで送信しました。",
	})
}

// VerifyOTP は確認コードを検証し、トークンを発行する。
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// ResendOTP は確認コードを再送信する。
// POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ResendOTP(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: "確認コードを再送信しました。"})
}

// Login はメールアドレスとパスワードで認証する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークンペアを返す。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.Refresh)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// Logout はリフレッシュトークンを失効させる。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req refreshRequest
	if err := bind(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Logout(r.Context(), userID, req.Refresh); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAuthResponse(result *auth.AuthResult) authResponse {
	return authResponse{
		User:    toUserResponse(result.User),
		Access:  result.Tokens.Access,
		Refresh: result.Tokens.Refresh,
	}
}
