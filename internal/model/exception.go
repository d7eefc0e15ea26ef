package model

import "time"

// ExceptionRecord は記録されたエラー（404や500など）を表す。
// 同一のcodeとURLの組み合わせは1レコードにまとめ、発生回数をEventsで数える。
type ExceptionRecord struct {
	ID         int64
	Code       int
	URL        string
	URLReferer string
	Events     int
	Resolved   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExceptionPage は例外一覧の1ページ分を表す。
type ExceptionPage struct {
	Items           []ExceptionRecord
	Page            int
	PageSize        int
	Total           int
	UnresolvedCount int
}

// TotalPages は総ページ数を返す。レコードがない場合も1を返す。
func (p ExceptionPage) TotalPages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasPrev は前のページが存在するかを返す。
func (p ExceptionPage) HasPrev() bool {
	return p.Page > 1
}

// HasNext は次のページが存在するかを返す。
func (p ExceptionPage) HasNext() bool {
	return p.Page < p.TotalPages()
}
