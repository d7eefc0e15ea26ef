// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// ErrVersionConflict は楽観ロックのバージョンが一致しなかったことを表す。
var ErrVersionConflict = errors.New("version conflict")

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
// 取得系メソッドは所属グループとそのロールも併せて読み込む。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGoogleID はGoogleアカウントのsubでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Save はユーザーを作成または更新し、グループ所属を同一トランザクションで置き換える。
	// IDが空の場合は新規IDを採番する。
	Save(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新し、password_changedをtrueにする。
	UpdatePassword(ctx context.Context, id string, hash []byte) error
}

// GroupRepository は権限グループの参照インターフェース。
type GroupRepository interface {
	// FindByName は名前でグループを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Group, error)
}

// RoleRepository はロールの永続化インターフェース。
type RoleRepository interface {
	// List は全ロールを名前順で返す。
	List(ctx context.Context) ([]model.Role, error)

	// FindByID は指定IDのロールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Role, error)

	// Create はロールを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, role *model.Role) error

	// Update はrole.Versionが一致する場合のみ更新し、Versionを進める。
	// 一致しない場合はErrVersionConflict、名前が重複する場合はErrDuplicateを返す。
	Update(ctx context.Context, role *model.Role) error

	// Delete は指定IDのロールを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id int64) error
}

// ExceptionRepository は例外レコードの永続化インターフェース。
type ExceptionRepository interface {
	// List は更新日時の降順で例外レコードを返す。
	List(ctx context.Context, offset, limit int) ([]model.ExceptionRecord, error)

	// Count は総件数と未解決件数を返す。
	Count(ctx context.Context) (total int, unresolved int, err error)

	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.ExceptionRecord, error)

	// MarkAllAsResolved は全レコードを解決済みにし、更新件数を返す。
	MarkAllAsResolved(ctx context.Context) (int64, error)

	// ToggleResolved は解決状態を単一のUPDATEで反転し、更新後のレコードを返す。
	// 見つからない場合はnilを返す。
	ToggleResolved(ctx context.Context, id int64) (*model.ExceptionRecord, error)

	// Record は(code, url)単位でレコードをUPSERTする。
	// 既存レコードはeventsを加算し、未解決に戻す。
	Record(ctx context.Context, code int, url, referer string) error

	// DeleteResolvedBefore は指定日時より前に更新された解決済みレコードを削除する。
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
