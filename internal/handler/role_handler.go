package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/role"
	"github.com/hitoshi/cmsadmin/internal/view"
)

// RoleListPath はロール一覧のパス。
const RoleListPath = "/admin/settings/roles/"

// roleField はロール名のフォームフィールド名。
const roleField = "role"

// RoleServiceInterface はロールハンドラーが必要とするサービスインターフェース。
type RoleServiceInterface interface {
	List(ctx context.Context) ([]model.Role, error)
	Get(ctx context.Context, id int64) (*model.Role, error)
	Create(ctx context.Context, rawName string) (*model.Role, error)
	Update(ctx context.Context, id int64, rawName string, version int) (*model.Role, error)
	// Delete は削除したロールを返す。存在しない場合は(nil, nil)を返す。
	Delete(ctx context.Context, id int64) (*model.Role, error)
}

var _ RoleServiceInterface = (*role.Service)(nil)

// RoleHandler はロールのCRUDを扱うHTTPハンドラー。
// ルーター側でROLE_SUPER_ADMINの権限チェックを適用する前提。
type RoleHandler struct {
	service  RoleServiceInterface
	renderer Renderer
	flashes  FlashWriter
}

// NewRoleHandler はRoleHandlerを生成する。
func NewRoleHandler(service RoleServiceInterface, renderer Renderer, flashes FlashWriter) *RoleHandler {
	return &RoleHandler{
		service:  service,
		renderer: renderer,
		flashes:  flashes,
	}
}

// List はロール一覧を表示する。
// GET /admin/settings/roles/
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, view.PageRoles, "Roles", view.RolesData{Roles: roles})
}

// Add はロールの作成フォームを表示し、POSTの場合は作成する。
// GET, POST /admin/settings/roles/add
func (h *RoleHandler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.renderer.Render(w, r, http.StatusOK, view.PageRoleForm, "Add role", view.RoleFormData{})
		return
	}

	rawName := r.PostFormValue(roleField)
	created, err := h.service.Create(r.Context(), rawName)
	if err != nil {
		if h.renderFormError(w, r, "Add role", view.RoleFormData{Name: rawName}, err) {
			return
		}
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyRoleAdded, created.Name)
	http.Redirect(w, r, RoleListPath, http.StatusFound)
}

// Edit はロールの編集フォームを表示し、POSTの場合は更新する。
// 更新はフォームに埋め込んだversionで楽観ロックを行い、競合時は409を返す。
// GET, POST /admin/settings/roles/{id}/edit
func (h *RoleHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.renderer.WriteError(w, r, http.StatusNotFound, model.NewRoleNotFoundError(0))
		return
	}

	current, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	if r.Method != http.MethodPost {
		h.renderer.Render(w, r, http.StatusOK, view.PageRoleForm, "Edit role", view.RoleFormData{
			Role:    current,
			Name:    current.Name,
			Version: current.Version,
		})
		return
	}

	rawName := r.PostFormValue(roleField)
	// versionが無いフォームは編集開始時点が分からないため、競合として扱う
	version, err := strconv.Atoi(r.PostFormValue("version"))
	if err != nil || version <= 0 {
		h.renderer.WriteError(w, r, http.StatusConflict, model.NewRoleConflictError())
		return
	}

	updated, err := h.service.Update(r.Context(), id, rawName, version)
	if err != nil {
		data := view.RoleFormData{Role: current, Name: rawName, Version: version}
		if h.renderFormError(w, r, "Edit role", data, err) {
			return
		}
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyRoleEdited, updated.Name)
	http.Redirect(w, r, RoleListPath, http.StatusFound)
}

// Delete はロールを削除する。存在しないIDの場合は何もせず一覧へ戻る。
// POST /admin/settings/roles/{id}/delete
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Redirect(w, r, RoleListPath, http.StatusFound)
		return
	}

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.renderer.WriteError, err)
		return
	}

	if deleted != nil {
		addFlash(w, r, h.flashes, flash.LevelSuccess, i18n.KeyRoleDeleted, deleted.Name)
	}
	http.Redirect(w, r, RoleListPath, http.StatusFound)
}

// renderFormError は入力起因のエラー（不正な名前、重複）であればフォームを再表示してtrueを返す。
func (h *RoleHandler) renderFormError(w http.ResponseWriter, r *http.Request, title string, data view.RoleFormData, err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case model.ErrCodeRoleInvalid, model.ErrCodeRoleDuplicate:
		data.Error = apiErr.Message
		h.renderer.Render(w, r, http.StatusUnprocessableEntity, view.PageRoleForm, title, data)
		return true
	default:
		return false
	}
}
