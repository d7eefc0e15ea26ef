package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/user"
	"github.com/hitoshi/cmsadmin/internal/view"
)

// PasswordPath はパスワード変更画面のパス。
const PasswordPath = "/admin/profile/password"

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	ChangePassword(ctx context.Context, userID, password, confirmation string) error
}

var _ UserServiceInterface = (*user.Service)(nil)

// ExceptionCounter はダッシュボードに未解決件数を表示するためのインターフェース。
type ExceptionCounter interface {
	List(ctx context.Context, page int) (*model.ExceptionPage, error)
}

// ProfileHandler はダッシュボードとパスワード変更のHTTPハンドラー。
type ProfileHandler struct {
	users      UserServiceInterface
	exceptions ExceptionCounter
	renderer   Renderer
	flashes    FlashWriter
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(users UserServiceInterface, exceptions ExceptionCounter, renderer Renderer, flashes FlashWriter) *ProfileHandler {
	return &ProfileHandler{
		users:      users,
		exceptions: exceptions,
		renderer:   renderer,
		flashes:    flashes,
	}
}

// Dashboard は管理画面トップを表示する。
// GET /admin/
func (h *ProfileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var data view.DashboardData
	page, err := h.exceptions.List(r.Context(), 1)
	if err != nil {
		// 件数が取れなくてもトップは表示する
		slog.Error("failed to count exceptions", slog.String("error", err.Error()))
	} else {
		data.UnresolvedExceptions = page.UnresolvedCount
	}
	h.renderer.Render(w, r, http.StatusOK, view.PageDashboard, "Dashboard", data)
}

// Password はパスワード変更フォームを表示し、POSTの場合は変更する。
// GET, POST /admin/profile/password
func (h *ProfileHandler) Password(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusFound)
		return
	}

	if r.Method != http.MethodPost {
		h.renderer.Render(w, r, http.StatusOK, view.PagePassword, "Change password", view.PasswordData{})
		return
	}

	err := h.users.ChangePassword(r.Context(), current.ID,
		r.PostFormValue("password"), r.PostFormValue("password_confirmation"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePasswordInvalid {
			h.renderer.Render(w, r, http.StatusUnprocessableEntity, view.PagePassword, "Change password",
				view.PasswordData{Error: apiErr.Message})
			return
		}
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	slog.Info("password changed", slog.String("user_id", current.ID))
	addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyPasswordChanged)
	http.Redirect(w, r, auth.HomePath, http.StatusFound)
}
