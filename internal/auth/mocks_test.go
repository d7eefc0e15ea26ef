package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hitoshi/cmsadmin/internal/model"
	"github.com/hitoshi/cmsadmin/internal/repository"
)

// --- モック定義 ---

// memUserRepo はメモリ上でユーザーを保持するUserRepository。
type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	seq    int
	saves  int
	reads  int
	saveFn func(ctx context.Context, user *model.User) error
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (m *memUserRepo) clone(u *model.User) *model.User {
	c := *u
	c.Groups = append([]model.Group(nil), u.Groups...)
	return &c
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if u, ok := m.users[id]; ok {
		return m.clone(u), nil
	}
	return nil, nil
}

func (m *memUserRepo) FindByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, u := range m.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			return m.clone(u), nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return m.clone(u), nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Save(ctx context.Context, user *model.User) error {
	if m.saveFn != nil {
		if err := m.saveFn(ctx, user); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if user.ID == "" {
		m.seq++
		user.ID = fmt.Sprintf("user-%d", m.seq)
	}
	m.users[user.ID] = m.clone(user)
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
		u.PasswordChanged = true
	}
	return nil
}

func (m *memUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type mockGroupRepo struct {
	groups map[string]*model.Group
	calls  int
}

func (m *mockGroupRepo) FindByName(_ context.Context, name string) (*model.Group, error) {
	m.calls++
	if g, ok := m.groups[name]; ok {
		c := *g
		return &c, nil
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type mockVerifier struct {
	verifyFn func(ctx context.Context, rawToken string) (*VerifiedIdentity, error)
}

func (m *mockVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedIdentity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, rawToken)
	}
	return nil, ErrRejected
}

type mockProvisioner struct {
	getOrCreateFn func(ctx context.Context, identity *VerifiedIdentity) (*model.User, error)
}

func (m *mockProvisioner) GetOrCreateUser(ctx context.Context, identity *VerifiedIdentity) (*model.User, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, identity)
	}
	return nil, nil
}

type mockExchanger struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (string, error)
}

func (m *mockExchanger) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockExchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return "", nil
}

// --- compile-time interface checks ---
var (
	_ repository.UserRepository    = (*memUserRepo)(nil)
	_ repository.GroupRepository   = (*mockGroupRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
	_ IdentityVerifier             = (*mockVerifier)(nil)
	_ UserProvisioner              = (*mockProvisioner)(nil)
	_ CodeExchanger                = (*mockExchanger)(nil)
)
