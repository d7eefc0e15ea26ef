// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, admin, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeExceptionNotFound = "EXCEPTION_NOT_FOUND"
	ErrCodeRoleNotFound      = "ROLE_NOT_FOUND"
	ErrCodeRoleInvalid       = "ROLE_INVALID"
	ErrCodeRoleDuplicate     = "ROLE_DUPLICATE"
	ErrCodeRoleConflict      = "ROLE_CONFLICT"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodePasswordInvalid   = "PASSWORD_INVALID"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeCSRF              = "CSRF_INVALID"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAccessDeniedError は権限不足エラーを生成する。
func NewAccessDeniedError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  fmt.Sprintf("この操作には %s 権限が必要です。", role),
		Category: "auth",
		Action:   "管理者に権限の付与を依頼してください。",
	}
}

// NewExceptionNotFoundError は例外レコード未検出エラーを生成する。
func NewExceptionNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeExceptionNotFound,
		Message:  fmt.Sprintf("指定された例外レコードが見つかりません: %d", id),
		Category: "admin",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewRoleNotFoundError はロール未検出エラーを生成する。
func NewRoleNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeRoleNotFound,
		Message:  fmt.Sprintf("指定されたロールが見つかりません: %d", id),
		Category: "admin",
		Action:   "ロール一覧から対象を選び直してください。",
	}
}

// NewRoleInvalidError はロール入力の検証エラーを生成する。
func NewRoleInvalidError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleInvalid,
		Message:  fmt.Sprintf("無効なロールです: %s", reason),
		Category: "validation",
		Action:   "ロール名を入力してください（例: ROLE_EDITOR）。",
	}
}

// NewRoleDuplicateError はロール名の重複エラーを生成する。
func NewRoleDuplicateError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeRoleDuplicate,
		Message:  fmt.Sprintf("同じ名前のロールが既に存在します: %s", name),
		Category: "validation",
		Action:   "別のロール名を指定してください。",
	}
}

// NewRoleConflictError は楽観ロックの競合エラーを生成する。
func NewRoleConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeRoleConflict,
		Message:  "ロールは他のユーザーによって更新されています。",
		Category: "admin",
		Action:   "画面を再読み込みしてから再度編集してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPasswordInvalidError はパスワード入力の検証エラーを生成する。
func NewPasswordInvalidError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePasswordInvalid,
		Message:  fmt.Sprintf("パスワードが無効です: %s", reason),
		Category: "validation",
		Action:   "8文字以上のパスワードを2回同じように入力してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPageNotFoundError はページが存在しない場合のエラーを生成する。
func NewPageNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "ページが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "フォームの有効期限が切れています。",
		Category: "auth",
		Action:   "画面を再読み込みしてから再度送信してください。",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimit,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
