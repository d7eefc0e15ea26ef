package role

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
	"github.com/hitoshi/cmsadmin/internal/security"
)

// --- モック ---

type mockRoleRepo struct {
	listFn     func(ctx context.Context) ([]model.Role, error)
	findByIDFn func(ctx context.Context, id int64) (*model.Role, error)
	createFn   func(ctx context.Context, role *model.Role) error
	updateFn   func(ctx context.Context, role *model.Role) error
	deleteFn   func(ctx context.Context, id int64) error
}

func (m *mockRoleRepo) List(ctx context.Context) ([]model.Role, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRoleRepo) FindByID(ctx context.Context, id int64) (*model.Role, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRoleRepo) Create(ctx context.Context, role *model.Role) error {
	if m.createFn != nil {
		return m.createFn(ctx, role)
	}
	return nil
}

func (m *mockRoleRepo) Update(ctx context.Context, role *model.Role) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, role)
	}
	return nil
}

func (m *mockRoleRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

var _ repository.RoleRepository = (*mockRoleRepo)(nil)

func newTestService(repo *mockRoleRepo) *Service {
	return NewService(repo, security.NewTextSanitizer())
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestService_Create(t *testing.T) {
	var saved *model.Role
	repo := &mockRoleRepo{createFn: func(_ context.Context, role *model.Role) error {
		role.ID = 7
		role.Version = 1
		saved = role
		return nil
	}}

	role, err := newTestService(repo).Create(context.Background(), "  <b>ROLE_EDITOR</b> ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if saved == nil || saved.Name != "ROLE_EDITOR" {
		t.Fatalf("saved = %+v", saved)
	}
	if role.ID != 7 || role.Version != 1 {
		t.Errorf("role = %+v", role)
	}
}

func TestService_Create_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only markup", "<script>alert(1)</script>"},
		{"missing prefix", "EDITOR"},
		{"lowercase", "role_editor"},
		{"spaces", "ROLE_CONTENT EDITOR"},
		{"prefix only", "ROLE_"},
		{"too long", "ROLE_" + strings.Repeat("A", maxNameLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &mockRoleRepo{createFn: func(context.Context, *model.Role) error {
				called = true
				return nil
			}}

			_, err := newTestService(repo).Create(context.Background(), tt.input)
			assertAPIError(t, err, model.ErrCodeRoleInvalid)
			if called {
				t.Error("repository must not be called for invalid input")
			}
		})
	}
}

func TestService_Create_Duplicate(t *testing.T) {
	repo := &mockRoleRepo{createFn: func(context.Context, *model.Role) error {
		return repository.ErrDuplicate
	}}

	_, err := newTestService(repo).Create(context.Background(), "ROLE_ADMIN")
	assertAPIError(t, err, model.ErrCodeRoleDuplicate)
}

func TestService_Get_NotFound(t *testing.T) {
	_, err := newTestService(&mockRoleRepo{}).Get(context.Background(), 99)
	assertAPIError(t, err, model.ErrCodeRoleNotFound)
}

func TestService_Update(t *testing.T) {
	repo := &mockRoleRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Role, error) {
			return &model.Role{ID: id, Name: "ROLE_OLD", Version: 3}, nil
		},
		updateFn: func(_ context.Context, role *model.Role) error {
			if role.Version != 3 {
				t.Errorf("version passed to repository = %d, want 3", role.Version)
			}
			role.Version++
			return nil
		},
	}

	role, err := newTestService(repo).Update(context.Background(), 5, "ROLE_NEW", 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if role.Name != "ROLE_NEW" || role.Version != 4 {
		t.Errorf("role = %+v", role)
	}
}

func TestService_Update_StaleVersionIsConflict(t *testing.T) {
	repo := &mockRoleRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Role, error) {
			return &model.Role{ID: id, Name: "ROLE_OLD", Version: 4}, nil
		},
		updateFn: func(context.Context, *model.Role) error {
			return repository.ErrVersionConflict
		},
	}

	_, err := newTestService(repo).Update(context.Background(), 5, "ROLE_NEW", 3)
	assertAPIError(t, err, model.ErrCodeRoleConflict)
}

func TestService_Update_Duplicate(t *testing.T) {
	repo := &mockRoleRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Role, error) {
			return &model.Role{ID: id, Name: "ROLE_OLD", Version: 1}, nil
		},
		updateFn: func(context.Context, *model.Role) error {
			return repository.ErrDuplicate
		},
	}

	_, err := newTestService(repo).Update(context.Background(), 5, "ROLE_ADMIN", 1)
	assertAPIError(t, err, model.ErrCodeRoleDuplicate)
}

func TestService_Update_NotFound(t *testing.T) {
	_, err := newTestService(&mockRoleRepo{}).Update(context.Background(), 5, "ROLE_NEW", 1)
	assertAPIError(t, err, model.ErrCodeRoleNotFound)
}

func TestService_Delete(t *testing.T) {
	var deleted int64
	repo := &mockRoleRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Role, error) {
			return &model.Role{ID: id, Name: "ROLE_EDITOR"}, nil
		},
		deleteFn: func(_ context.Context, id int64) error {
			deleted = id
			return nil
		},
	}

	role, err := newTestService(repo).Delete(context.Background(), 8)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != 8 {
		t.Errorf("deleted = %d, want 8", deleted)
	}
	if role == nil || role.Name != "ROLE_EDITOR" {
		t.Errorf("role = %+v", role)
	}
}

// 存在しないロールの削除はエラーにならず、何も削除しない。
func TestService_Delete_MissingIsSilent(t *testing.T) {
	deleteCalled := false
	repo := &mockRoleRepo{deleteFn: func(context.Context, int64) error {
		deleteCalled = true
		return nil
	}}

	role, err := newTestService(repo).Delete(context.Background(), 404)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if role != nil {
		t.Errorf("role = %+v, want nil", role)
	}
	if deleteCalled {
		t.Error("repository Delete must not be called for a missing role")
	}
}

func TestService_List(t *testing.T) {
	repo := &mockRoleRepo{listFn: func(context.Context) ([]model.Role, error) {
		return []model.Role{{ID: 1, Name: "ROLE_ADMIN"}, {ID: 2, Name: "ROLE_SUPER_ADMIN"}}, nil
	}}

	roles, err := newTestService(repo).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 2 {
		t.Errorf("len(roles) = %d, want 2", len(roles))
	}
}
