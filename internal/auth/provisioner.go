package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cmsadmin/internal/metrics"
	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
)

// DefaultAdminLocale は自動作成ユーザーの管理画面ロケール。
const DefaultAdminLocale = "en"

// UserFinder は検証済みの外部IDに対応する既存ユーザーを探す。
type UserFinder interface {
	// FindUser は見つからない場合nilを返す。
	FindUser(ctx context.Context, identity *VerifiedIdentity) (*model.User, error)
}

// RepositoryUserFinder はGoogleのsubで検索し、見つからなければメールアドレスで検索する。
// メールでのフォールバックにより、Googleと未連携の既存管理者もサインインできる。
type RepositoryUserFinder struct {
	users repository.UserRepository
}

// NewRepositoryUserFinder はRepositoryUserFinderを生成する。
func NewRepositoryUserFinder(users repository.UserRepository) *RepositoryUserFinder {
	return &RepositoryUserFinder{users: users}
}

// FindUser は既存ユーザーを検索する。
func (f *RepositoryUserFinder) FindUser(ctx context.Context, identity *VerifiedIdentity) (*model.User, error) {
	user, err := f.users.FindByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return f.users.FindByEmail(ctx, identity.Email)
}

// UserFactory は新規ユーザーの雛形を生成する。
type UserFactory func() *model.User

// DefaultUserFactory は有効化済み、ロケールen、パスワード変更済みのユーザーを生成する。
func DefaultUserFactory() *model.User {
	return &model.User{
		Enabled:         true,
		AdminLocale:     DefaultAdminLocale,
		PasswordChanged: true,
	}
}

// UserProvisioner はサインインしたアカウントに対応するローカルユーザーを用意する。
type UserProvisioner interface {
	GetOrCreateUser(ctx context.Context, identity *VerifiedIdentity) (*model.User, error)
}

// Provisioner はドメインルールに基づいてユーザーを検索または作成し、グループを付与する。
type Provisioner struct {
	rules   *DomainRules
	finder  UserFinder
	users   repository.UserRepository
	groups  repository.GroupRepository
	newUser UserFactory
	metrics metrics.MetricsCollector
}

// ProvisionerOption はProvisionerの任意設定。
type ProvisionerOption func(*Provisioner)

// WithUserFactory は新規ユーザーの生成方法を差し替える。
func WithUserFactory(f UserFactory) ProvisionerOption {
	return func(p *Provisioner) {
		if f != nil {
			p.newUser = f
		}
	}
}

// WithProvisionerMetrics はユーザー作成数を記録するコレクターを設定する。
func WithProvisionerMetrics(m metrics.MetricsCollector) ProvisionerOption {
	return func(p *Provisioner) {
		p.metrics = m
	}
}

// NewProvisioner はProvisionerを生成する。
func NewProvisioner(
	rules *DomainRules,
	finder UserFinder,
	users repository.UserRepository,
	groups repository.GroupRepository,
	opts ...ProvisionerOption,
) *Provisioner {
	p := &Provisioner{
		rules:   rules,
		finder:  finder,
		users:   users,
		groups:  groups,
		newUser: DefaultUserFactory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetOrCreateUser はメールアドレスのドメインに最初にマッチしたルールに従ってユーザーを用意する。
//
// マッチするルールが無い場合はErrRejectedを返し、ユーザーの読み書きは一切行わない。
// 既存ユーザーが無ければ推測不能なパスワードで作成する。
// ルールのアクセスレベルと同名のグループを所属に追加し、存在しないグループは無視する。
func (p *Provisioner) GetOrCreateUser(ctx context.Context, identity *VerifiedIdentity) (*model.User, error) {
	rule, ok := p.rules.Match(identity.Email)
	if !ok {
		return nil, fmt.Errorf("%w: domain of %s is not configured", ErrRejected, identity.Email)
	}

	user, err := p.finder.FindUser(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	created := false
	if user == nil {
		user, err = p.buildUser(identity)
		if err != nil {
			return nil, err
		}
		created = true
	}

	for _, name := range rule.AccessLevels {
		group, err := p.groups.FindByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to find group %s: %w", name, err)
		}
		if group == nil {
			slog.Debug("access level has no matching group",
				slog.String("group", name),
				slog.String("domain", rule.DomainName),
			)
			continue
		}
		user.AddGroup(*group)
	}
	user.GoogleID = identity.Subject

	if err := p.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if created {
		slog.Info("user provisioned",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
			slog.String("domain", rule.DomainName),
			slog.Int("groups_count", len(user.Groups)),
		)
		if p.metrics != nil {
			p.metrics.RecordUserProvisioned()
		}
	}

	return user, nil
}

func (p *Provisioner) buildUser(identity *VerifiedIdentity) (*model.User, error) {
	hash, err := placeholderPasswordHash()
	if err != nil {
		return nil, fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	user := p.newUser()
	user.Username = identity.Email
	user.Email = identity.Email
	user.PasswordHash = hash
	return user, nil
}

// placeholderPasswordHash は32バイトの乱数から作ったパスワードのbcryptハッシュを返す。
// 平文はどこにも保存しない。
func placeholderPasswordHash() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(b)), bcrypt.DefaultCost)
}

// compile-time interface check
var (
	_ UserFinder      = (*RepositoryUserFinder)(nil)
	_ UserProvisioner = (*Provisioner)(nil)
)
