package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/model"
)

// --- モック定義 ---

type renderCall struct {
	status int
	name   string
	title  string
	data   any
}

type errorCall struct {
	status int
	err    *model.APIError
}

type mockRenderer struct {
	renders []renderCall
	errors  []errorCall
}

func (m *mockRenderer) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	m.renders = append(m.renders, renderCall{status: status, name: name, title: title, data: data})
	w.WriteHeader(status)
}

func (m *mockRenderer) WriteError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
	m.errors = append(m.errors, errorCall{status: status, err: apiErr})
	w.WriteHeader(status)
}

func (m *mockRenderer) lastRender() renderCall {
	if len(m.renders) == 0 {
		return renderCall{}
	}
	return m.renders[len(m.renders)-1]
}

func (m *mockRenderer) lastError() errorCall {
	if len(m.errors) == 0 {
		return errorCall{}
	}
	return m.errors[len(m.errors)-1]
}

type mockFlashes struct {
	messages []flash.Message
	err      error
}

func (m *mockFlashes) AddFlash(w http.ResponseWriter, r *http.Request, level flash.Level, key string, args ...string) error {
	m.messages = append(m.messages, flash.Message{Level: level, Key: key, Args: args})
	return m.err
}

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	signInFn         func(ctx context.Context, creds auth.Credentials) (*model.User, *model.Session, error)
	handleCallbackFn func(ctx context.Context, code string) (*model.User, *model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) SignIn(ctx context.Context, creds auth.Credentials) (*model.User, *model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, creds)
	}
	return nil, nil, auth.ErrRejected
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.User, *model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil, auth.ErrRejected
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

// mockGate はauth.Gateの振る舞いを最小限に再現する。
type mockGate struct {
	supports     bool
	successUsers []*model.User
	failures     int
	starts       int
}

func (m *mockGate) Supports(r *http.Request) bool {
	return m.supports
}

func (m *mockGate) ExtractCredentials(r *http.Request) auth.Credentials {
	return auth.Credentials{IDToken: r.PostFormValue(auth.TokenField)}
}

func (m *mockGate) OnSuccess(w http.ResponseWriter, r *http.Request, user *model.User) {
	m.successUsers = append(m.successUsers, user)
	http.Redirect(w, r, auth.HomePath, http.StatusFound)
}

func (m *mockGate) OnFailure(w http.ResponseWriter, r *http.Request) {
	m.failures++
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

func (m *mockGate) Start(w http.ResponseWriter, r *http.Request) {
	m.starts++
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

type recordCall struct {
	code    int
	url     string
	referer string
}

type mockExceptionService struct {
	listFn       func(ctx context.Context, page int) (*model.ExceptionPage, error)
	resolveAllFn func(ctx context.Context) (int64, error)
	toggleFn     func(ctx context.Context, id int64) (*model.ExceptionRecord, error)
	exportFn     func(ctx context.Context, w io.Writer) error
	records      []recordCall
	listPages    []int
}

func (m *mockExceptionService) List(ctx context.Context, page int) (*model.ExceptionPage, error) {
	m.listPages = append(m.listPages, page)
	if m.listFn != nil {
		return m.listFn(ctx, page)
	}
	return &model.ExceptionPage{Page: page, PageSize: 20}, nil
}

func (m *mockExceptionService) ResolveAll(ctx context.Context) (int64, error) {
	if m.resolveAllFn != nil {
		return m.resolveAllFn(ctx)
	}
	return 0, nil
}

func (m *mockExceptionService) ToggleResolved(ctx context.Context, id int64) (*model.ExceptionRecord, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, id)
	}
	return &model.ExceptionRecord{ID: id, Resolved: true}, nil
}

func (m *mockExceptionService) Record(ctx context.Context, code int, url, referer string) error {
	m.records = append(m.records, recordCall{code: code, url: url, referer: referer})
	return nil
}

func (m *mockExceptionService) Export(ctx context.Context, w io.Writer) error {
	if m.exportFn != nil {
		return m.exportFn(ctx, w)
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

type mockRoleService struct {
	listFn   func(ctx context.Context) ([]model.Role, error)
	getFn    func(ctx context.Context, id int64) (*model.Role, error)
	createFn func(ctx context.Context, rawName string) (*model.Role, error)
	updateFn func(ctx context.Context, id int64, rawName string, version int) (*model.Role, error)
	deleteFn func(ctx context.Context, id int64) (*model.Role, error)
}

func (m *mockRoleService) List(ctx context.Context) ([]model.Role, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRoleService) Get(ctx context.Context, id int64) (*model.Role, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewRoleNotFoundError(id)
}

func (m *mockRoleService) Create(ctx context.Context, rawName string) (*model.Role, error) {
	if m.createFn != nil {
		return m.createFn(ctx, rawName)
	}
	return &model.Role{ID: 1, Name: rawName, Version: 1}, nil
}

func (m *mockRoleService) Update(ctx context.Context, id int64, rawName string, version int) (*model.Role, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, rawName, version)
	}
	return &model.Role{ID: id, Name: rawName, Version: version + 1}, nil
}

func (m *mockRoleService) Delete(ctx context.Context, id int64) (*model.Role, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil, nil
}

type mockUserService struct {
	changePasswordFn func(ctx context.Context, userID, password, confirmation string) error
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID, password, confirmation string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, password, confirmation)
	}
	return nil
}

// --- ヘルパー ---

// withURLParam はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
