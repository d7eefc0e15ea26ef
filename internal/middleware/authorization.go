package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// NewRequireRoleMiddleware は指定ロールを持たないユーザーに403を返すミドルウェアを返す。
// セッションミドルウェアの後に配置する。ROLE_SUPER_ADMINは全てのロールを持つとみなす。
func NewRequireRoleMiddleware(role string, writeError ErrorWriter) func(next http.Handler) http.Handler {
	if writeError == nil {
		writeError = JSONErrorWriter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !user.HasRole(role) {
				slog.Warn("access denied",
					slog.String("user_id", user.ID),
					slog.String("required_role", role),
					slog.String("path", r.URL.Path),
				)
				writeError(w, r, http.StatusForbidden, model.NewAccessDeniedError(role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
