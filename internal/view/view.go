// Package view は管理画面のHTMLテンプレートの描画を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ページテンプレート名
const (
	PageLogin      = "login.html"
	PageDashboard  = "dashboard.html"
	PageExceptions = "exceptions.html"
	PageRoles      = "roles.html"
	PageRoleForm   = "role_form.html"
	PagePassword   = "password.html"
	PageError      = "error.html"
)

var pageNames = []string{
	PageLogin,
	PageDashboard,
	PageExceptions,
	PageRoles,
	PageRoleForm,
	PagePassword,
	PageError,
}

// FlashView は翻訳済みのフラッシュメッセージ。
type FlashView struct {
	Level string
	Text  string
}

// Page は全テンプレートに渡されるデータ。
type Page struct {
	Title     string
	Lang      string
	User      *model.User
	CSRFToken string
	CSRFField string
	Flashes   []FlashView
	Data      any
}

// Renderer はレイアウトと各ページを組み合わせたテンプレートを保持する。
type Renderer struct {
	pages      map[string]*template.Template
	translator *i18n.Translator
	flashes    *flash.Store
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer(translator *i18n.Translator, flashes *flash.Store) (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(template.FuncMap{
		"formatTime": formatTime,
		"add":        func(a, b int) int { return a + b },
	}).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templatesFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{
		pages:      pages,
		translator: translator,
		flashes:    flashes,
	}, nil
}

// StaticHandler は埋め込みの静的ファイル（ログイン用スクリプトなど）を配信する。
func StaticHandler(prefix string) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(prefix, http.FileServer(http.FS(sub)))
}

// Render はページを描画する。保留中のフラッシュメッセージは表示後に破棄される。
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, ok := v.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	tag := v.locale(r, user)

	page := Page{
		Title:     title,
		Lang:      tag.String(),
		User:      user,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		CSRFField: middleware.CSRFFormField,
		Flashes:   v.takeFlashes(w, r, tag),
		Data:      data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		slog.Error("template render failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// WriteError はAPIErrorをエラーページとして描画する。middleware.ErrorWriterとして使える。
func (v *Renderer) WriteError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
	v.Render(w, r, status, PageError, http.StatusText(status), ErrorData{
		Status:  status,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Action:  apiErr.Action,
	})
}

// ErrorData はエラーページの表示内容。
type ErrorData struct {
	Status  int
	Code    string
	Message string
	Action  string
}

func (v *Renderer) locale(r *http.Request, user *model.User) language.Tag {
	if user != nil {
		return v.translator.Resolve(r, user.AdminLocale)
	}
	return v.translator.Resolve(r, "")
}

// takeFlashes はCookieのメッセージを取り出して翻訳し、Cookieを更新する。
// レスポンスヘッダーの送信前に呼ぶ必要がある。
func (v *Renderer) takeFlashes(w http.ResponseWriter, r *http.Request, tag language.Tag) []FlashView {
	if v.flashes == nil {
		return nil
	}
	bag := v.flashes.Load(r)
	msgs := bag.TakeMessages()
	if len(msgs) == 0 {
		return nil
	}
	if err := v.flashes.Save(w, bag); err != nil {
		slog.Error("failed to store flash", slog.String("error", err.Error()))
	}

	out := make([]FlashView, 0, len(msgs))
	for _, m := range msgs {
		args := make([]any, len(m.Args))
		for i, a := range m.Args {
			args[i] = a
		}
		out = append(out, FlashView{
			Level: string(m.Level),
			Text:  v.translator.Translate(tag, m.Key, args...),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
