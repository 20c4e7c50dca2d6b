package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/familyhub/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listResponse はページ番号方式の一覧レスポンス。
// Next/Previousは前後ページの絶対URLで、存在しない場合はnull。
type listResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// parsePage はクエリパラメータpageとpage_sizeを解釈する。
// pageが整数でない、または1未満の場合はINVALID_PAGE。
// page_sizeが不正な場合はデフォルト値、上限を超える場合は上限値を使う。
func parsePage(r *http.Request) (model.Page, error) {
	q := r.URL.Query()

	number := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return model.Page{}, model.NewInvalidPageError()
		}
		number = n
	}

	size := defaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = min(n, maxPageSize)
		}
	}
	return model.Page{Number: number, Size: size}, nil
}

// newListResponse はページ情報から一覧レスポンスを組み立てる。
func newListResponse[T any](r *http.Request, page model.Page, count int, results []T) listResponse[T] {
	if results == nil {
		results = []T{}
	}
	resp := listResponse[T]{Count: count, Results: results}
	if page.Number*page.Size < count {
		resp.Next = pageLink(r, page.Number+1)
	}
	if page.Number > 1 {
		resp.Previous = pageLink(r, page.Number-1)
	}
	return resp
}

// pageLink はリクエストURLのpageパラメータを差し替えた絶対URLを返す。
// 1ページ目はpageパラメータを付与しない。
func pageLink(r *http.Request, number int) *string {
	q := r.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}

	u := url.URL{
		Scheme:   requestScheme(r),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	link := u.String()
	return &link
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
