// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// userContextKey はリクエストコンテキストにユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// userSlotContextKey は外側のミドルウェアへユーザーIDを伝えるためのキー。
	userSlotContextKey = contextKey("user_slot")
)

// userSlot はロギングミドルウェアが用意し、セッションミドルウェアが埋める。
type userSlot struct {
	id string
}

// UserLoader はセッションIDから現在のユーザーを取得するインターフェース。
// auth.Serviceが満たす。
type UserLoader interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 所属グループとロールを含むユーザーをリクエストコンテキストに注入する。
// 未認証リクエストはonUnauthenticatedに委ねる。nilの場合は401 Unauthorizedを返す。
func NewSessionMiddleware(loader UserLoader, onUnauthenticated http.HandlerFunc) func(next http.Handler) http.Handler {
	if onUnauthenticated == nil {
		onUnauthenticated = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				onUnauthenticated(w, r)
				return
			}

			// 2. セッションとユーザーを取得（期限切れ、無効化済みユーザーはエラー）
			user, err := loader.GetCurrentUser(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("session rejected",
					slog.String("error", err.Error()),
				)
				onUnauthenticated(w, r)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストからユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUser はコンテキストにユーザーとそのIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if slot, ok := ctx.Value(userSlotContextKey).(*userSlot); ok {
		slot.id = user.ID
	}
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, userIDContextKey, user.ID)
}
