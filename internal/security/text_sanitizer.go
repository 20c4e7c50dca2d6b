// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー入力（タスク説明、コメント本文、プロジェクト説明）から
// HTMLを取り除き、プレーンテキストとして保存できる形に整える。
// bluemondayのStrictPolicyを使用し、すべてのタグと属性を除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はテキストのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は除去される。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// TextSanitizer はSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、1インスタンスを共有してよい。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使用するTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはテキスト中の & < > をエスケープするため、保存前に元の文字へ戻す。
// JSONで返却し表示側でエスケープされる前提。
func (s *TextSanitizer) Sanitize(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(input)))
}

var _ Sanitizer = (*TextSanitizer)(nil)
