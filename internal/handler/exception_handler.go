package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/cmsadmin/internal/exception"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/view"
)

// ExceptionListPath は例外一覧のパス。
const ExceptionListPath = "/admin/exception/"

// ExceptionServiceInterface は例外ハンドラーが必要とするサービスインターフェース。
type ExceptionServiceInterface interface {
	List(ctx context.Context, page int) (*model.ExceptionPage, error)
	ResolveAll(ctx context.Context) (int64, error)
	ToggleResolved(ctx context.Context, id int64) (*model.ExceptionRecord, error)
	Record(ctx context.Context, code int, url, referer string) error
	Export(ctx context.Context, w io.Writer) error
}

var _ ExceptionServiceInterface = (*exception.Service)(nil)

// ExceptionHandler は例外レジストリのHTTPハンドラー。
type ExceptionHandler struct {
	service  ExceptionServiceInterface
	renderer Renderer
	flashes  FlashWriter
}

// NewExceptionHandler はExceptionHandlerを生成する。
func NewExceptionHandler(service ExceptionServiceInterface, renderer Renderer, flashes FlashWriter) *ExceptionHandler {
	return &ExceptionHandler{
		service:  service,
		renderer: renderer,
		flashes:  flashes,
	}
}

// List は例外一覧を新しい順にページ単位で表示する。
// GET /admin/exception/?page=N
func (h *ExceptionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := h.service.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	h.renderer.Render(w, r, http.StatusOK, view.PageExceptions, "Exceptions", view.ExceptionsData{Page: result})
}

// ResolveAll は全ての例外を解決済みにして一覧へ戻る。
// GET, POST /admin/exception/resolve_all
func (h *ExceptionHandler) ResolveAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.ResolveAll(r.Context()); err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyExceptionsResolved)
	http.Redirect(w, r, ExceptionListPath, http.StatusFound)
}

// ToggleResolved は1件の例外の解決状態を反転して一覧へ戻る。
// GET, POST /admin/exception/toggle_resolve/{id}
func (h *ExceptionHandler) ToggleResolved(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.renderer.WriteError(w, r, http.StatusNotFound, model.NewPageNotFoundError())
		return
	}

	if _, err := h.service.ToggleResolved(r.Context(), id); err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyExceptionToggled)
	http.Redirect(w, r, backTo(r, ExceptionListPath), http.StatusFound)
}

// Export は例外一覧をExcelファイルとしてダウンロードさせる。
// GET /admin/exception/export.xlsx
func (h *ExceptionHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	filename := fmt.Sprintf("exceptions-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// NotFound は存在しないページへのアクセスを例外として記録し、404ページを表示する。
// 記録するのは管理画面配下のみ。
func (h *ExceptionHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/admin") {
		if err := h.service.Record(r.Context(), http.StatusNotFound, r.URL.RequestURI(), r.Referer()); err != nil {
			slog.Error("failed to record exception", slog.String("error", err.Error()))
		}
	}
	h.renderer.WriteError(w, r, http.StatusNotFound, model.NewPageNotFoundError())
}

// backTo はRefererが一覧ページ（ページ指定付き）であればそこへ、それ以外はfallbackへ戻す。
func backTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path != fallback {
		return fallback
	}
	if ref.RawQuery == "" {
		return fallback
	}
	return fallback + "?" + ref.RawQuery
}
