package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/model"
)

// PasswordCheckConfig はパスワード変更チェックの設定。
type PasswordCheckConfig struct {
	// ChangePath はパスワード変更画面のパス。
	ChangePath string
	// ExemptPaths はチェックを行わないパス（ログアウトなど）。
	ExemptPaths []string
}

// NewPasswordCheckMiddleware はパスワード未変更の管理者をパスワード変更画面へリダイレクトする。
// セッションミドルウェアの後に配置する。
func NewPasswordCheckMiddleware(flashes *flash.Store, config PasswordCheckConfig) func(next http.Handler) http.Handler {
	exempt := make(map[string]bool, len(config.ExemptPaths)+1)
	exempt[config.ChangePath] = true
	for _, p := range config.ExemptPaths {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user.PasswordChanged || exempt[r.URL.Path] || !user.HasRole(model.RoleAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			if err := flashes.AddFlash(w, r, flash.LevelWarning, i18n.KeyPasswordRequired); err != nil {
				slog.Error("failed to store flash", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, config.ChangePath, http.StatusFound)
		})
	}
}
