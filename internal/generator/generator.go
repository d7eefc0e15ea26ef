// Package generator は管理画面のスモークテストの雛形を生成する。
package generator

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/handler"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Options は生成コマンドの入力。
type Options struct {
	ProjectDir string
	Namespace  string

	// Interactive がtrueで名前空間が必要な場合はInから問い合わせる。
	Interactive bool
	In          io.Reader
	Out         io.Writer

	// Force がtrueの場合は既存ファイルを上書きする。
	Force bool
}

// Result は生成結果。
type Result struct {
	Project Project
	Target  Target
	Written []string
	Skipped []string
}

// templateData はテンプレートに渡す値。
type templateData struct {
	Package        string
	ModulePath     string
	ImportPath     string
	Namespace      string
	LoginPath      string
	SigninPath     string
	HealthPath     string
	ProtectedPaths []string
}

// Generator はテンプレートからテストファイルを書き出す。
type Generator struct {
	templates *template.Template
	logger    *slog.Logger
}

// New はGeneratorを生成する。
func New(logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse generator templates: %w", err)
	}

	return &Generator{templates: tmpl, logger: logger}, nil
}

// Generate はプロジェクトのレイアウトを判定し、テストファイルを生成する。
// 既存ファイルはForceが指定されない限りスキップする。
func (g *Generator) Generate(opts Options) (*Result, error) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	project, err := LoadProject(opts.ProjectDir)
	if err != nil {
		return nil, err
	}

	namespace := opts.Namespace
	if project.Legacy() && strings.TrimSpace(namespace) == "" {
		if !opts.Interactive || opts.In == nil {
			return nil, ErrNamespaceRequired
		}
		namespace, err = AskNamespace(opts.In, opts.Out)
		if err != nil {
			return nil, err
		}
	}
	if !project.Legacy() && namespace != "" {
		g.logger.Info("namespace ignored for package layout",
			slog.String("namespace", namespace),
			slog.String("go_version", project.GoVersion),
		)
	}

	target, err := ResolveTarget(project, namespace)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(opts.Out, "Admin Tests Generation")
	fmt.Fprintf(opts.Out, "  module: %s (go %s)\n", project.ModulePath, project.GoVersion)
	fmt.Fprintf(opts.Out, "  target: %s\n", target.Dir)

	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target dir: %w", err)
	}

	data := templateData{
		Package:    target.Package,
		ModulePath: project.ModulePath,
		ImportPath: target.ImportPath,
		Namespace:  target.Namespace,
		LoginPath:  auth.LoginPath,
		SigninPath: auth.SigninPath,
		HealthPath: "/health",
		ProtectedPaths: []string{
			auth.HomePath,
			handler.ExceptionListPath,
			handler.RoleListPath,
			handler.PasswordPath,
		},
	}

	result := &Result{Project: project, Target: target}
	for _, name := range g.templateNames() {
		fileName := strings.TrimSuffix(name, ".tmpl")
		dest := filepath.Join(target.Dir, fileName)

		if !opts.Force {
			if _, err := os.Stat(dest); err == nil {
				result.Skipped = append(result.Skipped, dest)
				fmt.Fprintf(opts.Out, "  skip    %s\n", fileName)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to stat %s: %w", dest, err)
			}
		}

		src, err := g.render(name, fileName, data)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, src, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", dest, err)
		}
		result.Written = append(result.Written, dest)
		fmt.Fprintf(opts.Out, "  create  %s\n", fileName)
	}

	g.logger.Info("admin tests generated",
		slog.String("target", target.Dir),
		slog.Int("written", len(result.Written)),
		slog.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}

// render はテンプレートを実行し、goimportsで整形する。
func (g *Generator) render(name, fileName string, data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	src, err := imports.Process(fileName, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", fileName, err)
	}
	return src, nil
}

func (g *Generator) templateNames() []string {
	var names []string
	for _, t := range g.templates.Templates() {
		if path.Ext(t.Name()) == ".tmpl" {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}
