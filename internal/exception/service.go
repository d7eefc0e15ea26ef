// Package exception は記録済みエラー（404や500など）の一覧と解決状態の管理を提供する。
package exception

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/cmsadmin/internal/metrics"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
)

const defaultPageSize = 20

// maxURLLength を超えるURLは切り詰めて記録する。
const maxURLLength = 2048

// Service は例外レジストリのサービス層。
type Service struct {
	repo     repository.ExceptionRepository
	metrics  metrics.MetricsCollector
	pageSize int
}

// NewService はServiceを生成する。pageSizeが0以下の場合は既定値を使う。metricsはnilでもよい。
func NewService(repo repository.ExceptionRepository, m metrics.MetricsCollector, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{
		repo:     repo,
		metrics:  m,
		pageSize: pageSize,
	}
}

// List は指定ページの例外レコードを更新日時の降順で返す。
// ページ番号は1始まりで、範囲外の値は最も近い有効なページに丸める。
func (s *Service) List(ctx context.Context, page int) (*model.ExceptionPage, error) {
	total, unresolved, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("例外件数の取得に失敗しました: %w", err)
	}

	result := &model.ExceptionPage{
		PageSize:        s.pageSize,
		Total:           total,
		UnresolvedCount: unresolved,
	}
	if page < 1 {
		page = 1
	}
	if last := result.TotalPages(); page > last {
		page = last
	}
	result.Page = page

	items, err := s.repo.List(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("例外一覧の取得に失敗しました: %w", err)
	}
	result.Items = items

	return result, nil
}

// ResolveAll は全ての例外レコードを解決済みにする。単一のUPDATEで実行するため全件成功か全件失敗のどちらかになる。
func (s *Service) ResolveAll(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkAllAsResolved(ctx)
	if err != nil {
		return 0, fmt.Errorf("例外の一括解決に失敗しました: %w", err)
	}

	slog.Info("exceptions resolved", slog.Int64("count", n))
	if s.metrics != nil {
		s.metrics.RecordExceptionsResolved(n)
	}
	return n, nil
}

// ToggleResolved は指定レコードの解決状態を反転する。
// 存在しない場合はEXCEPTION_NOT_FOUNDを返す。
func (s *Service) ToggleResolved(ctx context.Context, id int64) (*model.ExceptionRecord, error) {
	rec, err := s.repo.ToggleResolved(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("例外の解決状態の更新に失敗しました: %w", err)
	}
	if rec == nil {
		return nil, model.NewExceptionNotFoundError(id)
	}

	slog.Info("exception toggled",
		slog.Int64("exception_id", id),
		slog.Bool("resolved", rec.Resolved),
	)
	if rec.Resolved && s.metrics != nil {
		s.metrics.RecordExceptionsResolved(1)
	}
	return rec, nil
}

// Record はエラーの発生を記録する。同じcodeとURLの組み合わせは回数を加算して未解決に戻す。
func (s *Service) Record(ctx context.Context, code int, url, referer string) error {
	if url == "" {
		return nil
	}
	url = truncate(url, maxURLLength)
	referer = truncate(referer, maxURLLength)

	if err := s.repo.Record(ctx, code, url, referer); err != nil {
		return fmt.Errorf("例外の記録に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordExceptionLogged(code)
	}
	return nil
}

// Cleanup は保持期間を過ぎた解決済みレコードを削除し、削除件数を返す。
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	before := time.Now().Add(-retention)
	n, err := s.repo.DeleteResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("解決済み例外の削除に失敗しました: %w", err)
	}
	return n, nil
}

// truncate はsを最大maxバイトに切り詰める。マルチバイト文字の途中では切らない。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
