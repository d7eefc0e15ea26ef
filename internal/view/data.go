package view

import "github.com/hitoshi/cmsadmin/internal/model"

// LoginData はログイン画面の表示内容。
type LoginData struct {
	GoogleClientID  string
	SigninPath      string
	GoogleLoginPath string
	TokenField      string
}

// DashboardData は管理画面トップの表示内容。
type DashboardData struct {
	UnresolvedExceptions int
}

// ExceptionsData は例外一覧の表示内容。
type ExceptionsData struct {
	Page *model.ExceptionPage
}

// RolesData はロール一覧の表示内容。
type RolesData struct {
	Roles []model.Role
}

// RoleFormData はロールの作成・編集フォームの表示内容。
// Roleがnilの場合は新規作成として扱う。
type RoleFormData struct {
	Role    *model.Role
	Name    string
	Version int
	Error   string
}

// PasswordData はパスワード変更フォームの表示内容。
type PasswordData struct {
	Error string
}
