// Package handler は管理画面のHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/model"
)

// Renderer はHTMLページの描画を行うインターフェース。view.Rendererが実装する。
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any)
	WriteError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError)
}

// FlashWriter はフラッシュメッセージを保存するインターフェース。flash.Storeが実装する。
type FlashWriter interface {
	AddFlash(w http.ResponseWriter, r *http.Request, level flash.Level, key string, args ...string) error
}

var _ FlashWriter = (*flash.Store)(nil)

// handleServiceError はサービス層から返されたエラーをエラーページとして描画する。
// APIError以外のエラーはログに記録し、500として扱う。
func handleServiceError(w http.ResponseWriter, r *http.Request, writeError middleware.ErrorWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeError(w, r, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, r, http.StatusInternalServerError, model.NewInternalError())
}

// addFlash はフラッシュを保存する。失敗してもリクエストは継続する。
func addFlash(w http.ResponseWriter, r *http.Request, flashes FlashWriter, level flash.Level, key string, args ...string) {
	if err := flashes.AddFlash(w, r, level, key, args...); err != nil {
		slog.Error("failed to store flash", slog.String("error", err.Error()))
	}
}

// idParam はURLパラメータ{id}を数値として取り出す。ルートの正規表現で数字のみに制限済み。
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
