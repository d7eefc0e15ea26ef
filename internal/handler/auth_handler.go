package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/view"
)

const (
	oauthStateCookie = "oauth_state"
	// GoogleLoginPath は認可コードフローの開始パス。
	GoogleLoginPath = "/admin/oauth/google/login"
	// GoogleCallbackPath は認可コードフローのコールバックパス。
	GoogleCallbackPath = "/admin/oauth/google/callback"
	// LogoutPath はログアウトのパス。
	LogoutPath = "/admin/logout"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	SignIn(ctx context.Context, creds auth.Credentials) (*model.User, *model.Session, error)
	HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// SigninGate はサインインリクエストの判定と成功・失敗時の遷移を担当する。auth.Gateが実装する。
type SigninGate interface {
	Supports(r *http.Request) bool
	ExtractCredentials(r *http.Request) auth.Credentials
	OnSuccess(w http.ResponseWriter, r *http.Request, user *model.User)
	OnFailure(w http.ResponseWriter, r *http.Request)
}

var (
	_ AuthServiceInterface = (*auth.Service)(nil)
	_ SigninGate           = (*auth.Gate)(nil)
)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	GoogleClientID string
	CookieDomain   string
	CookieSecure   bool
	SessionMaxAge  int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン画面、Googleサインイン、ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	gate     SigninGate
	renderer Renderer
	flashes  FlashWriter
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, gate SigninGate, renderer Renderer, flashes FlashWriter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		gate:     gate,
		renderer: renderer,
		flashes:  flashes,
		config:   config,
	}
}

// LoginPage はGoogleサインインボタンを含むログイン画面を表示する。
// GET /admin/login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, view.PageLogin, "Sign in", view.LoginData{
		GoogleClientID:  h.config.GoogleClientID,
		SigninPath:      auth.SigninPath,
		GoogleLoginPath: GoogleLoginPath,
		TokenField:      auth.TokenField,
	})
}

// Signin はPOSTされたGoogleのIDトークンでサインインする。
// POST /admin/oauth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	if !h.gate.Supports(r) {
		http.Redirect(w, r, auth.LoginPath, http.StatusFound)
		return
	}

	user, session, err := h.service.SignIn(r.Context(), h.gate.ExtractCredentials(r))
	if err != nil {
		h.logSigninError(err)
		h.gate.OnFailure(w, r)
		return
	}

	h.setSessionCookie(w, session)
	h.gate.OnSuccess(w, r, user)
}

// GoogleLogin はGoogleの認可コードフローを開始する。
// GET /admin/oauth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.renderer.WriteError(w, r, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/admin/oauth/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// GoogleCallback は認可コードをIDトークンに交換してサインインする。
// GET /admin/oauth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.gate.OnFailure(w, r)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/admin/oauth/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code", slog.String("error", r.URL.Query().Get("error")))
		h.gate.OnFailure(w, r)
		return
	}

	// 3. 認証処理
	user, session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		h.logSigninError(err)
		h.gate.OnFailure(w, r)
		return
	}

	h.setSessionCookie(w, session)
	h.gate.OnSuccess(w, r, user)
}

// Logout はセッションを破棄してログイン画面へ戻る。
// POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	addFlash(w, r, h.flashes, flash.LevelInfo, i18n.KeyLoggedOut)
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// logSigninError は拒否以外の失敗（鍵の取得失敗やDBエラー）をエラーとして記録する。
func (h *AuthHandler) logSigninError(err error) {
	if errors.Is(err, auth.ErrRejected) {
		slog.Info("sign-in rejected", slog.String("reason", err.Error()))
		return
	}
	slog.Error("sign-in failed", slog.String("error", err.Error()))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
