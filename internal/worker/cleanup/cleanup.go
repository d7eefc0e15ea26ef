// Package cleanup は例外レジストリと期限切れセッションの削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した解決済みの例外と、期限切れのセッションを削除する。
// cronなどから `cleanup` サブコマンドとして1回ずつ実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExceptionCleaner は解決済みの古い例外を削除するインターフェース。
// exception.Serviceが実装する。
type ExceptionCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionPurger は期限切れセッションを削除するインターフェース。
// repository.SessionRepositoryが実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は保持期間を超過したデータの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	exceptions    ExceptionCleaner
	sessions      SessionPurger
	logger        *slog.Logger
	RetentionDays int // 解決済み例外の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(exceptions ExceptionCleaner, sessions SessionPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		exceptions:    exceptions,
		sessions:      sessions,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Result は1回の実行で削除した件数。
type Result struct {
	ExceptionsDeleted int64
	SessionsDeleted   int64
}

// Run は解決済みの古い例外と期限切れセッションを削除する。
// 例外の削除に失敗した場合もセッションの削除は試み、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var result Result
	var firstErr error

	retention := time.Duration(j.RetentionDays) * 24 * time.Hour
	n, err := j.exceptions.Cleanup(ctx, retention)
	if err != nil {
		j.logger.Error("例外クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		firstErr = fmt.Errorf("例外クリーンアップの実行に失敗: %w", err)
	} else {
		result.ExceptionsDeleted = n
	}

	n, err = j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
		}
	} else {
		result.SessionsDeleted = n
	}

	if firstErr != nil {
		return result, firstErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("exceptions_deleted", result.ExceptionsDeleted),
		slog.Int64("sessions_deleted", result.SessionsDeleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}
