// Package model はドメインモデルを定義する。
package model

import "time"

// 組み込みのロール名
const (
	// RoleAdmin は管理画面にアクセスできるロール。
	RoleAdmin = "ROLE_ADMIN"
	// RoleSuperAdmin は全ての権限を持つロール。
	RoleSuperAdmin = "ROLE_SUPER_ADMIN"
)

// User は管理画面にログインするユーザーを表す。
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    []byte
	Enabled         bool
	PasswordChanged bool
	AdminLocale     string
	GoogleID        string
	Groups          []Group
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddGroup はグループを所属に追加する。
// 同一IDのグループが既にある場合は何もしない（所属は重複しない集合として扱う）。
func (u *User) AddGroup(g Group) {
	for _, existing := range u.Groups {
		if existing.ID == g.ID {
			return
		}
	}
	u.Groups = append(u.Groups, g)
}

// HasGroup は指定名のグループに所属しているかを返す。
func (u *User) HasGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// HasRole は所属グループ経由で指定ロールを持つかを返す。
// ROLE_SUPER_ADMIN を持つユーザーは全てのロールを持つとみなす。
func (u *User) HasRole(role string) bool {
	for _, g := range u.Groups {
		for _, r := range g.Roles {
			if r.Name == role || r.Name == RoleSuperAdmin {
				return true
			}
		}
	}
	return false
}

// Group はロールをまとめた権限グループを表す。
// ユーザーとは多対多の関係を持つ。
type Group struct {
	ID    int64
	Name  string
	Roles []Role
}

// Role は権限文字列を表す。Groupとは独立にCRUD管理される。
type Role struct {
	ID        int64
	Name      string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Data      SessionData
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionData はセッションのdataカラムにJSONで保存する付帯情報。
type SessionData struct {
	// SignInMethod はセッションを発行したサインイン経路（id_token / authorization_code）。
	SignInMethod string `json:"sign_in_method,omitempty"`
}
