// Package auth はメールアドレス+パスワード認証、メール認証コード、JWTの発行と失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/mail"
	"github.com/hitoshi/familyhub/internal/metrics"
	"github.com/hitoshi/familyhub/internal/model"
	"github.com/hitoshi/familyhub/internal/otp"
	"github.com/hitoshi/familyhub/internal/repository"
)

const msgEmailTaken = "このメールアドレスは既に登録されています。"

// OTPManager は認証コードの発行・検証のインターフェース。
type OTPManager interface {
	Issue(ctx context.Context, email string) (string, error)
	Resend(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
	TTL() time.Duration
	CodeLength() int
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// AuthResult は認証成功時の結果。
type AuthResult struct {
	User   *model.User
	Tokens *TokenPair
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	otp       OTPManager
	mailer    mail.Mailer
	tokens    *TokenIssuer
	blacklist TokenBlacklist
	hasher    PasswordHasher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	otpManager OTPManager,
	mailer mail.Mailer,
	tokens *TokenIssuer,
	blacklist TokenBlacklist,
	hasher PasswordHasher,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo:  userRepo,
		otp:       otpManager,
		mailer:    mailer,
		tokens:    tokens,
		blacklist: blacklist,
		hasher:    hasher,
		metrics:   metrics.OrNop(collector),
		now:       time.Now,
	}
}

// Register はユーザーを未認証状態で登録し、認証コードをメール送信する。
// 未認証のまま残っている同じメールアドレスのユーザーは名前・パスワードを上書きして再発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, model.NewValidationError("email", "有効なメールアドレスを入力してください。")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil && existing.IsVerified {
		s.metrics.RecordAuthEvent("register", "conflict")
		return nil, model.NewValidationError("email", msgEmailTaken)
	}

	// 未認証ユーザーの再登録は再送と同じクールダウンに従う。
	// 抑止された場合は名前・パスワードも更新しない。
	var code string
	if existing != nil {
		if code, err = s.resendCode(ctx, email); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var user *model.User
	if existing != nil {
		user = existing
		user.Name = in.Name
		user.PasswordHash = hash
		user.UpdatedAt = now
		if err := s.userRepo.UpdateRegistration(ctx, user); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return nil, model.NewValidationError("email", msgEmailTaken)
			}
			return nil, fmt.Errorf("failed to update registration: %w", err)
		}
		s.metrics.RecordOTPEvent("resent")
	} else {
		user = &model.User{
			ID:           uuid.New().String(),
			Email:        email,
			Name:         in.Name,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return nil, model.NewValidationError("email", msgEmailTaken)
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if code, err = s.otp.Issue(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to issue otp: %w", err)
		}
		s.metrics.RecordOTPEvent("issued")
	}

	if err := s.sendVerification(ctx, user, code); err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("register", "success")
	slog.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.Bool("re_registration", existing != nil),
	)
	return user, nil
}

// VerifyOTP は認証コードを検証し、成功時にユーザーを認証済みにしてトークンを発行する。
func (s *Service) VerifyOTP(ctx context.Context, rawEmail, code string) (*AuthResult, error) {
	if n := s.otp.CodeLength(); !isCode(code, n) {
		return nil, model.NewValidationError("code", fmt.Sprintf("%d桁の数字で入力してください。", n))
	}

	user, err := s.findUserByEmail(ctx, rawEmail)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, model.NewAlreadyVerifiedError()
	}

	if err := s.otp.Verify(ctx, user.Email, code); err != nil {
		var invalid *otp.InvalidCodeError
		switch {
		case errors.Is(err, otp.ErrExpired):
			s.metrics.RecordOTPEvent("expired")
			return nil, model.NewOTPExpiredError()
		case errors.As(err, &invalid):
			s.metrics.RecordOTPEvent("failed")
			return nil, model.NewOTPInvalidError(invalid.Remaining)
		default:
			return nil, fmt.Errorf("failed to verify otp: %w", err)
		}
	}

	now := s.now()
	if err := s.userRepo.MarkVerified(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	user.IsVerified = true
	user.VerifiedAt = &now
	user.UpdatedAt = now

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOTPEvent("verified")
	slog.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// ResendOTP は認証コードを再発行して送信する。クールダウン中はOTP_RESEND_THROTTLEDを返す。
func (s *Service) ResendOTP(ctx context.Context, rawEmail string) error {
	user, err := s.findUserByEmail(ctx, rawEmail)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return model.NewAlreadyVerifiedError()
	}

	code, err := s.resendCode(ctx, user.Email)
	if err != nil {
		return err
	}
	if err := s.sendVerification(ctx, user, code); err != nil {
		return err
	}

	s.metrics.RecordOTPEvent("resent")
	slog.InfoContext(ctx, "otp resent", slog.String("user_id", user.ID))
	return nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// メールアドレスの存在有無はエラーで区別しない。
func (s *Service) Login(ctx context.Context, rawEmail, password string) (*AuthResult, error) {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		s.metrics.RecordAuthEvent("login", "failure")
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, password) {
		s.metrics.RecordAuthEvent("login", "failure")
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.IsVerified {
		s.metrics.RecordAuthEvent("login", "unverified")
		return nil, model.NewEmailNotVerifiedError()
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLoginAt = &now

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("login", "success")
	slog.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh はリフレッシュトークンをローテーションする。
// 使用したトークンのjtiは有効期限まで失効させ、再利用はTOKEN_INVALIDとなる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		s.metrics.RecordAuthEvent("refresh", "invalid")
		return nil, model.NewTokenInvalidError()
	}

	revoked, err := s.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, err
	}
	if !revoked {
		s.metrics.RecordAuthEvent("refresh", "reused")
		slog.WarnContext(ctx, "refresh token reused",
			slog.String("user_id", claims.Subject),
			slog.String("jti", claims.ID),
		)
		return nil, model.NewTokenInvalidError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsVerified {
		return nil, model.NewTokenInvalidError()
	}

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuthEvent("refresh", "success")
	return tokens, nil
}

// Logout はリフレッシュトークンを失効させる。他ユーザーのトークンはTOKEN_INVALIDとする。
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil || claims.Subject != userID {
		return model.NewTokenInvalidError()
	}

	if _, err := s.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}

	s.metrics.RecordAuthEvent("logout", "success")
	slog.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

func (s *Service) findUserByEmail(ctx context.Context, rawEmail string) (*model.User, error) {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, model.NewValidationError("email", "有効なメールアドレスを入力してください。")
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *model.User, code string) error {
	msg := mail.VerificationMessage(user.Email, user.Name, code, s.otp.TTL())
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}
	slog.InfoContext(ctx, "otp sent", slog.String("user_id", user.ID))
	return nil
}

// retryAfterSeconds は残り時間を秒に切り上げる。
// resendCode はクールダウンを確認してから認証コードを再発行する。
// クールダウン中はOTP_RESEND_THROTTLEDを返す。
func (s *Service) resendCode(ctx context.Context, email string) (string, error) {
	code, err := s.otp.Resend(ctx, email)
	if err != nil {
		var throttled *otp.ThrottledError
		if errors.As(err, &throttled) {
			s.metrics.RecordOTPEvent("throttled")
			return "", model.NewOTPResendThrottledError(retryAfterSeconds(throttled.RetryAfter))
		}
		return "", fmt.Errorf("failed to resend otp: %w", err)
	}
	return code, nil
}

// isCode は文字列がn桁の数字かどうかを返す。
func isCode(code string, n int) bool {
	if len(code) != n {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
