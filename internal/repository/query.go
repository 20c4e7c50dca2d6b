package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// whereBuilder は動的なWHERE句とプレースホルダ引数を組み立てる。
type whereBuilder struct {
	conds []string
	args  []any
}

// add は条件を追加する。条件文字列中の "?" はすべて同じプレースホルダ番号に置換される。
func (b *whereBuilder) add(cond string, arg any) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(b.args))))
}

// addRaw は引数を伴わない条件を追加する。
func (b *whereBuilder) addRaw(cond string) {
	b.conds = append(b.conds, cond)
}

// sql はWHERE句を返す。条件がない場合は空文字列。
func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// next は次に使用するプレースホルダ番号を返す。
func (b *whereBuilder) next() int {
	return len(b.args) + 1
}

// orderBy はorderingパラメータを許可リストに基づいてORDER BY句に変換する。
// 先頭の "-" は降順を表す。許可されていない値はデフォルトを使用する。
// 同順位の並びを安定させるためidを第2キーに付与する。
func orderBy(ordering string, allowed map[string]string, defaultOrder string) string {
	desc := strings.HasPrefix(ordering, "-")
	key := strings.TrimPrefix(ordering, "-")

	column, ok := allowed[key]
	if !ok {
		return " ORDER BY " + defaultOrder + ", id"
	}
	if desc {
		return " ORDER BY " + column + " DESC NULLS LAST, id"
	}
	return " ORDER BY " + column + " ASC NULLS LAST, id"
}

// escapeLike はILIKE検索用にワイルドカード文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		s := ns.String
		return &s
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}
