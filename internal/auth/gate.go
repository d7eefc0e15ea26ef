package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/metrics"
	"github.com/hitoshi/cmsadmin/internal/model"
)

// 管理画面の認証に関わるパス
const (
	SigninPath = "/admin/oauth/signin"
	LoginPath  = "/admin/login"
	HomePath   = "/admin/"
)

// TokenField はGoogleのIDトークンを運ぶPOSTフィールド名。
const TokenField = "_google_id_token"

// ProviderKey はログイン後遷移先を保存する際のキー。
const ProviderKey = "main"

// Credentials はリクエストから取り出した未検証の認証情報。
type Credentials struct {
	IDToken string
}

// Gate はOAuthサインインの入口。リクエストの判定、認証情報の取り出し、
// ユーザーの解決、成功時と失敗時のリダイレクトを担当する。
type Gate struct {
	verifier    IdentityVerifier
	provisioner UserProvisioner
	flashes     *flash.Store
	metrics     metrics.MetricsCollector
}

// NewGate はGateを生成する。metricsはnilでもよい。
func NewGate(verifier IdentityVerifier, provisioner UserProvisioner, flashes *flash.Store, m metrics.MetricsCollector) *Gate {
	return &Gate{
		verifier:    verifier,
		provisioner: provisioner,
		flashes:     flashes,
		metrics:     m,
	}
}

// Supports はサインインのルート宛て、またはIDトークンのフィールドを含むPOSTであればtrueを返す。
func (g *Gate) Supports(r *http.Request) bool {
	if r.URL.Path == SigninPath {
		return true
	}
	return r.Method == http.MethodPost && r.PostFormValue(TokenField) != ""
}

// ExtractCredentials はPOSTボディからIDトークンを取り出す。検証は行わない。
func (g *Gate) ExtractCredentials(r *http.Request) Credentials {
	return Credentials{IDToken: r.PostFormValue(TokenField)}
}

// ResolveUser はIDトークンを検証し、対応するユーザーを返す。
// 検証失敗や未設定ドメインはErrRejectedをラップしたエラーになる。
func (g *Gate) ResolveUser(ctx context.Context, creds Credentials) (*model.User, error) {
	if creds.IDToken == "" {
		g.record(metrics.SigninRejected)
		return nil, fmt.Errorf("%w: missing id token", ErrRejected)
	}

	identity, err := g.verifier.Verify(ctx, creds.IDToken)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			g.record(metrics.SigninRejected)
			return nil, err
		}
		g.record(metrics.SigninError)
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	user, err := g.provisioner.GetOrCreateUser(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			g.record(metrics.SigninRejected)
			return nil, err
		}
		g.record(metrics.SigninError)
		return nil, err
	}

	g.record(metrics.SigninSuccess)
	return user, nil
}

// OnFailure はエラーのフラッシュメッセージを残してログイン画面へリダイレクトする。
func (g *Gate) OnFailure(w http.ResponseWriter, r *http.Request) {
	if err := g.flashes.AddFlash(w, r, flash.LevelDanger, i18n.KeyOAuthInvalid); err != nil {
		slog.Error("failed to store flash", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// OnSuccess は保存済みの遷移先（無ければ管理画面トップ）へリダイレクトする。
func (g *Gate) OnSuccess(w http.ResponseWriter, r *http.Request, user *model.User) {
	bag := g.flashes.Load(r)
	target := bag.TakeTargetPath(ProviderKey)
	if !isLocalPath(target) {
		target = HomePath
	}
	if err := g.flashes.Save(w, bag); err != nil {
		slog.Error("failed to store flash", slog.String("error", err.Error()))
	}

	slog.Info("admin signed in",
		slog.String("user_id", user.ID),
		slog.String("target", target),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

// Start は未認証で保護されたページにアクセスされた場合に、要求パスを保存してログイン画面へリダイレクトする。
func (g *Gate) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		bag := g.flashes.Load(r)
		bag.SetTargetPath(ProviderKey, r.URL.RequestURI())
		if err := g.flashes.Save(w, bag); err != nil {
			slog.Error("failed to store flash", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// SupportsRememberMe は常にfalseを返す。
func (g *Gate) SupportsRememberMe() bool {
	return false
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordSignin(outcome)
	}
}

// isLocalPath は同一オリジン内の絶対パスであればtrueを返す。
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
