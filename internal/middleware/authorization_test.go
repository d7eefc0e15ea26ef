package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/cmsadmin/internal/model"
)

func userWithRoles(roles ...string) *model.User {
	group := model.Group{ID: 1, Name: "Administrators"}
	for i, r := range roles {
		group.Roles = append(group.Roles, model.Role{ID: int64(i + 1), Name: r})
	}
	return &model.User{ID: "user-1", Groups: []model.Group{group}}
}

func TestRequireRoleMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		user       *model.User
		wantStatus int
	}{
		{"super admin", userWithRoles(model.RoleSuperAdmin), http.StatusOK},
		{"admin without super admin", userWithRoles("ROLE_ADMIN"), http.StatusForbidden},
		{"no groups", &model.User{ID: "user-2"}, http.StatusForbidden},
		{"no user", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewRequireRoleMiddleware(model.RoleSuperAdmin, nil)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/settings/roles/", nil)
			if tt.user != nil {
				req = req.WithContext(ContextWithUser(context.Background(), tt.user))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// TestRequireRoleMiddleware_SuperAdminImpliesOtherRoles はROLE_SUPER_ADMINが他のロールを包含することを検証する。
func TestRequireRoleMiddleware_SuperAdminImpliesOtherRoles(t *testing.T) {
	mw := NewRequireRoleMiddleware("ROLE_PERMISSIONMANAGER", nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), userWithRoles(model.RoleSuperAdmin)))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireRoleMiddleware_UsesErrorWriter(t *testing.T) {
	var gotCode string
	writer := func(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
		gotCode = apiErr.Code
		w.WriteHeader(status)
	}
	mw := NewRequireRoleMiddleware(model.RoleSuperAdmin, writer)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/settings/roles/", nil)
	req = req.WithContext(ContextWithUser(req.Context(), userWithRoles("ROLE_ADMIN")))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if gotCode != model.ErrCodeAccessDenied {
		t.Errorf("code = %q, want %q", gotCode, model.ErrCodeAccessDenied)
	}
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
