package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidEmail はメールアドレスの形式が不正であることを表す。
var ErrInvalidEmail = errors.New("invalid email address")

// NormalizeEmail はメールアドレスを比較・保存用に正規化する。
// 前後の空白を除去して小文字化し、国際化ドメインはPunycode(ASCII)に変換する。
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	local, domain := email[:at], email[at+1:]

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return local + "@" + ascii, nil
}
