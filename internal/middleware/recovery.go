package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// ExceptionRecorder は発生したエラーを例外レジストリへ記録する。
type ExceptionRecorder interface {
	Record(ctx context.Context, code int, url, referer string) error
}

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500として例外を記録してエラーページを返すミドルウェアを生成する。
// recorderとwriteErrorはnilでもよい。
func NewRecoveryMiddleware(recorder ExceptionRecorder, writeError ErrorWriter) func(next http.Handler) http.Handler {
	if writeError == nil {
		writeError = JSONErrorWriter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				if recorder != nil {
					// リクエストのキャンセルに引きずられないよう独立したコンテキストで記録する
					ctx := context.WithoutCancel(r.Context())
					if err := recorder.Record(ctx, http.StatusInternalServerError, r.URL.RequestURI(), r.Referer()); err != nil {
						slog.Error("failed to record exception", slog.String("error", err.Error()))
					}
				}

				writeError(w, r, http.StatusInternalServerError, model.NewInternalError())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
