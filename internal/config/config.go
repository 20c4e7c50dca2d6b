// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mail provider names.
const (
	MailProviderConsole  = "console"
	MailProviderSendGrid = "sendgrid"
)

// OTP_LENGTHの許容範囲。
const (
	MinOTPLength = 4
	MaxOTPLength = 10
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（OTPコード・リフレッシュトークン失効リスト）
	RedisURL string

	// JWT
	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	// OTP
	OTPTTL            time.Duration
	OTPLength         int
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration

	// Invitation
	InvitationTTL time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Cleanup
	UnverifiedUserRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// CORS（カンマ区切りの許可オリジン）
	CORSAllowedOrigin string

	// Mail
	MailProvider    string
	SendGridAPIKey  string
	MailFromAddress string
	MailFromName    string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.MailProvider = strings.ToLower(getEnvString("MAIL_PROVIDER", MailProviderConsole))
	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	if cfg.MailProvider == MailProviderSendGrid && cfg.SendGridAPIKey == "" {
		missing = append(missing, "SENDGRID_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.MailProvider != MailProviderConsole && cfg.MailProvider != MailProviderSendGrid {
		return nil, fmt.Errorf("unsupported MAIL_PROVIDER: %q", cfg.MailProvider)
	}

	// Optional fields with defaults
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "familyhub")
	cfg.JWTAccessTTL = getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute)
	cfg.JWTRefreshTTL = getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour)
	cfg.OTPTTL = getEnvDuration("OTP_TTL", 10*time.Minute)
	cfg.OTPLength = getEnvInt("OTP_LENGTH", 6)
	cfg.OTPMaxAttempts = getEnvInt("OTP_MAX_ATTEMPTS", 5)
	cfg.OTPResendCooldown = getEnvDuration("OTP_RESEND_COOLDOWN", 60*time.Second)
	cfg.InvitationTTL = getEnvDuration("INVITATION_TTL", 7*24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.UnverifiedUserRetentionDays = getEnvInt("UNVERIFIED_USER_RETENTION_DAYS", 7)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.MailFromAddress = getEnvString("MAIL_FROM_ADDRESS", "no-reply@familyhub.local")
	cfg.MailFromName = getEnvString("MAIL_FROM_NAME", "FamilyHub")

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.OTPLength < MinOTPLength || cfg.OTPLength > MaxOTPLength {
		return nil, fmt.Errorf("OTP_LENGTH must be between %d and %d: %d", MinOTPLength, MaxOTPLength, cfg.OTPLength)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
