// Package otp はメール認証用ワンタイムコードの発行と検証を提供する。
// コードはRedisにTTL付きで保存し、失敗回数と再送信クールダウンも同じくRedisで管理する。
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrExpired はコードが存在しない（期限切れ・試行回数超過・未発行）ことを表す。
var ErrExpired = errors.New("otp expired or not issued")

// InvalidCodeError はコード不一致を表す。Remainingは残り試行回数。
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("otp mismatch (%d attempts remaining)", e.Remaining)
}

// ThrottledError は再送信クールダウン中であることを表す。
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("otp resend throttled (retry after %s)", e.RetryAfter)
}

// Store はOTPの保存先のインターフェース。
type Store interface {
	// Save はコードを保存し、失敗回数をリセットする。
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	// Get は保存中のコードを返す。存在しない場合はfoundがfalse。
	Get(ctx context.Context, email string) (code string, found bool, err error)
	// IncrementAttempts は失敗回数を1増やし、増加後の値を返す。
	IncrementAttempts(ctx context.Context, email string, ttl time.Duration) (int, error)
	// Delete はコードと失敗回数を削除する。
	Delete(ctx context.Context, email string) error
	// StartCooldown は再送信クールダウンを開始する。
	// onlyIfAbsentがtrueの場合、既にクールダウン中であれば開始せずfalseを返す。
	StartCooldown(ctx context.Context, email string, d time.Duration, onlyIfAbsent bool) (bool, error)
	// CooldownRemaining はクールダウンの残り時間を返す。
	CooldownRemaining(ctx context.Context, email string) (time.Duration, error)
}

// Config はOTPの発行・検証ルールを表す。
type Config struct {
	Length         int
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// Manager はOTPの発行・再送信・検証を行う。
type Manager struct {
	store    Store
	cfg      Config
	generate func(length int) (string, error)
}

// NewManager はManagerを生成する。
func NewManager(store Store, cfg Config) *Manager {
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Manager{
		store:    store,
		cfg:      cfg,
		generate: GenerateCode,
	}
}

// TTL はコードの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// CodeLength は発行するコードの桁数を返す。
func (m *Manager) CodeLength() int {
	return m.cfg.Length
}

// Issue は新しいコードを発行して保存し、再送信クールダウンを開始する。
// 既存のコードは置き換えられる。
func (m *Manager) Issue(ctx context.Context, email string) (string, error) {
	code, err := m.saveNewCode(ctx, email)
	if err != nil {
		return "", err
	}
	if _, err := m.store.StartCooldown(ctx, email, m.cfg.ResendCooldown, false); err != nil {
		return "", fmt.Errorf("failed to start resend cooldown: %w", err)
	}
	return code, nil
}

// Resend はクールダウン中でなければ新しいコードを発行する。
// クールダウン中の場合は*ThrottledErrorを返す。
func (m *Manager) Resend(ctx context.Context, email string) (string, error) {
	acquired, err := m.store.StartCooldown(ctx, email, m.cfg.ResendCooldown, true)
	if err != nil {
		return "", fmt.Errorf("failed to start resend cooldown: %w", err)
	}
	if !acquired {
		remaining, err := m.store.CooldownRemaining(ctx, email)
		if err != nil {
			return "", fmt.Errorf("failed to read resend cooldown: %w", err)
		}
		if remaining <= 0 {
			remaining = time.Second
		}
		return "", &ThrottledError{RetryAfter: remaining}
	}
	return m.saveNewCode(ctx, email)
}

// Verify はコードを検証する。
// 一致した場合はコードを削除してnilを返す。
// 不一致の場合は失敗回数を増やして*InvalidCodeErrorを返し、上限に達したらコードを削除する。
// コードが存在しない場合はErrExpiredを返す。
func (m *Manager) Verify(ctx context.Context, email, code string) error {
	stored, found, err := m.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load otp: %w", err)
	}
	if !found {
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1 {
		if err := m.store.Delete(ctx, email); err != nil {
			return fmt.Errorf("failed to delete otp: %w", err)
		}
		return nil
	}

	attempts, err := m.store.IncrementAttempts(ctx, email, m.cfg.TTL)
	if err != nil {
		return fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	remaining := m.cfg.MaxAttempts - attempts
	if remaining <= 0 {
		if err := m.store.Delete(ctx, email); err != nil {
			return fmt.Errorf("failed to delete otp: %w", err)
		}
		remaining = 0
	}
	return &InvalidCodeError{Remaining: remaining}
}

func (m *Manager) saveNewCode(ctx context.Context, email string) (string, error) {
	code, err := m.generate(m.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	if err := m.store.Save(ctx, email, code, m.cfg.TTL); err != nil {
		return "", fmt.Errorf("failed to save otp: %w", err)
	}
	return code, nil
}

// GenerateCode はcrypto/randを使用してlength桁の数字コードを生成する。先頭の0も保持する。
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid otp length: %d", length)
	}
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
