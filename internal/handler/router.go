package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/metrics"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/model"
)

// HealthChecker はDB接続の死活確認を行うインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// AuthGate はサインインの判定と未認証アクセス時の遷移を担当する。auth.Gateが実装する。
type AuthGate interface {
	SigninGate
	Start(w http.ResponseWriter, r *http.Request)
}

var _ AuthGate = (*auth.Gate)(nil)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker HealthChecker
	UserLoader    middleware.UserLoader
	RateLimiter   *middleware.RateLimiter
	Flashes       *flash.Store
	Metrics       metrics.MetricsCollector
	// MetricsHandler は/metricsで公開するハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler
	CookieSecure   bool
	CookieDomain   string

	// 画面
	Renderer      Renderer
	StaticHandler http.Handler

	// 認証
	Gate        AuthGate
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 管理機能
	ExceptionService ExceptionServiceInterface
	RoleService      RoleServiceInterface
	UserService      UserServiceInterface
}

// NewRouter は管理画面の全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CSRF
//	  → Session → RateLimit(General) → PasswordCheck → RequireRole(ルートごと)
//
// ログイン画面、サインイン、OAuthコールバックはSessionの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthService, deps.Gate, deps.Renderer, deps.Flashes, deps.AuthConfig)
	exceptionHandler := NewExceptionHandler(deps.ExceptionService, deps.Renderer, deps.Flashes)
	roleHandler := NewRoleHandler(deps.RoleService, deps.Renderer, deps.Flashes)
	profileHandler := NewProfileHandler(deps.UserService, deps.ExceptionService, deps.Renderer, deps.Flashes)

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(slog.Default(), deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(deps.ExceptionService, deps.Renderer.WriteError))

	r.NotFound(exceptionHandler.NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		deps.Renderer.WriteError(w, r, http.StatusMethodNotAllowed, model.NewPageNotFoundError())
	})

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
			// IDトークン自体がGoogleの署名で保護されている
			ExemptPaths: []string{auth.SigninPath},
			ErrorWriter: deps.Renderer.WriteError,
		}))

		if deps.StaticHandler != nil {
			r.Handle("/static/*", deps.StaticHandler)
		}

		// --- 認証不要のルート ---
		r.Get("/login", authHandler.LoginPage)
		r.With(deps.RateLimiter.SigninMiddleware()).Post("/oauth/signin", authHandler.Signin)
		r.With(deps.RateLimiter.SigninMiddleware()).Get("/oauth/google/login", authHandler.GoogleLogin)
		r.With(deps.RateLimiter.SigninMiddleware()).Get("/oauth/google/callback", authHandler.GoogleCallback)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.UserLoader, deps.Gate.Start))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewPasswordCheckMiddleware(deps.Flashes, middleware.PasswordCheckConfig{
				ChangePath:  PasswordPath,
				ExemptPaths: []string{LogoutPath},
			}))

			r.Post("/logout", authHandler.Logout)
			r.Get("/", profileHandler.Dashboard)
			r.Get("/profile/password", profileHandler.Password)
			r.Post("/profile/password", profileHandler.Password)

			// 例外レジストリ
			r.Route("/exception", func(r chi.Router) {
				r.Use(middleware.NewRequireRoleMiddleware(model.RoleAdmin, deps.Renderer.WriteError))
				r.Get("/", exceptionHandler.List)
				r.Get("/export.xlsx", exceptionHandler.Export)
				r.Get("/resolve_all", exceptionHandler.ResolveAll)
				r.Post("/resolve_all", exceptionHandler.ResolveAll)
				r.Get(`/toggle_resolve/{id:\d+}`, exceptionHandler.ToggleResolved)
				r.Post(`/toggle_resolve/{id:\d+}`, exceptionHandler.ToggleResolved)
			})

			// ロール管理（スーパー管理者のみ）
			r.Route("/settings/roles", func(r chi.Router) {
				r.Use(middleware.NewRequireRoleMiddleware(model.RoleSuperAdmin, deps.Renderer.WriteError))
				r.Get("/", roleHandler.List)
				r.Get("/add", roleHandler.Add)
				r.Post("/add", roleHandler.Add)
				r.Get(`/{id:\d+}/edit`, roleHandler.Edit)
				r.Post(`/{id:\d+}/edit`, roleHandler.Edit)
				r.Post(`/{id:\d+}/delete`, roleHandler.Delete)
			})
		})
	})

	return r
}

// healthHandler はDB接続を確認し、結果をJSONで返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
