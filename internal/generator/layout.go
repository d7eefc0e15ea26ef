package generator

import (
	"errors"
	"fmt"
	"go/version"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
)

// LayoutThreshold はパッケージ単位レイアウトに切り替わるgoディレクティブのバージョン。
// これより古いプロジェクトは名前空間ごとのレガシーレイアウトとして扱う。
const LayoutThreshold = "1.21"

// defaultGoVersion はgoディレクティブがないgo.modの暗黙バージョン。
const defaultGoVersion = "1.16"

// ErrNamespaceRequired はレガシーレイアウトで名前空間が指定されていないことを示す。
var ErrNamespaceRequired = errors.New("namespace is required for projects below go " + LayoutThreshold)

var namespaceSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Project は生成先プロジェクトのgo.modから読み取った情報。
type Project struct {
	Dir        string
	ModulePath string
	GoVersion  string
}

// Legacy はgoディレクティブがLayoutThreshold未満であればtrueを返す。
func (p Project) Legacy() bool {
	return version.Compare("go"+p.GoVersion, "go"+LayoutThreshold) < 0
}

// Target はテストを書き出すディレクトリとパッケージを表す。
type Target struct {
	Dir        string
	Package    string
	ImportPath string
	Namespace  string
}

// LoadProject はdir直下のgo.modを解析する。
func LoadProject(dir string) (Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Project{}, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	path := filepath.Join(abs, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("failed to read go.mod: %w", err)
	}

	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return Project{}, fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return Project{}, fmt.Errorf("go.mod has no module directive: %s", path)
	}

	goVersion := defaultGoVersion
	if f.Go != nil && f.Go.Version != "" {
		goVersion = f.Go.Version
	}

	return Project{
		Dir:        abs,
		ModulePath: f.Module.Mod.Path,
		GoVersion:  goVersion,
	}, nil
}

// ValidateNamespace は "Vendor/NameBundle" 形式の名前空間を検証し、正規化した値を返す。
// 区切りには "/" と "\" のどちらも使える。
func ValidateNamespace(ns string) (string, error) {
	ns = strings.Trim(strings.ReplaceAll(strings.TrimSpace(ns), `\`, "/"), "/")
	if ns == "" {
		return "", ErrNamespaceRequired
	}

	segments := strings.Split(ns, "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("namespace %q must contain a vendor (e.g. Acme/BlogBundle)", ns)
	}
	for _, s := range segments {
		if !namespaceSegment.MatchString(s) {
			return "", fmt.Errorf("namespace %q contains an invalid segment %q", ns, s)
		}
	}
	if !strings.HasSuffix(segments[len(segments)-1], "Bundle") {
		return "", fmt.Errorf("namespace %q must end with \"Bundle\"", ns)
	}

	return ns, nil
}

// ResolveTarget はプロジェクトのレイアウトに応じた出力先を決定する。
// レガシーレイアウトでは名前空間のディレクトリ配下、それ以外は internal/admintests に出力し、
// 名前空間は無視する。
func ResolveTarget(p Project, namespace string) (Target, error) {
	if !p.Legacy() {
		return Target{
			Dir:        filepath.Join(p.Dir, "internal", "admintests"),
			Package:    "admintests",
			ImportPath: p.ModulePath + "/internal/admintests",
		}, nil
	}

	ns, err := ValidateNamespace(namespace)
	if err != nil {
		return Target{}, err
	}

	return Target{
		Dir:        filepath.Join(p.Dir, filepath.FromSlash(ns), "admintests"),
		Package:    "admintests",
		ImportPath: p.ModulePath + "/" + ns + "/admintests",
		Namespace:  ns,
	}, nil
}
