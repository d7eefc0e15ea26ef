package app

import (
	"flag"
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理画面サーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCleanup は保持期間を過ぎた例外と期限切れセッションを1回だけ削除する。
	CommandCleanup Command = "cleanup"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandGenerateAdminTests は管理画面のスモークテストの雛形を生成する。
	CommandGenerateAdminTests Command = "generate-admin-tests"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "cleanup":
		return CommandCleanup
	case "healthcheck":
		return CommandHealthcheck
	case "generate-admin-tests":
		return CommandGenerateAdminTests
	default:
		return CommandServe
	}
}

// GenerateFlags はgenerate-admin-testsのオプション。
type GenerateFlags struct {
	Namespace  string
	ProjectDir string
	Force      bool
}

// ParseGenerateFlags はgenerate-admin-testsに続く引数を解析する。
func ParseGenerateFlags(args []string, output io.Writer) (GenerateFlags, error) {
	var f GenerateFlags

	fs := flag.NewFlagSet(string(CommandGenerateAdminTests), flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.Namespace, "namespace", "", "The namespace to generate the tests in (e.g. Acme/BlogBundle)")
	fs.StringVar(&f.ProjectDir, "project-dir", ".", "Directory containing the target project's go.mod")
	fs.BoolVar(&f.Force, "force", false, "Overwrite existing files")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cmsadmin %s [--namespace=Vendor/NameBundle] [--project-dir=.]\n\n", CommandGenerateAdminTests)
		fmt.Fprintln(fs.Output(), "Generates the tests used to test the admin.")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return GenerateFlags{}, err
	}
	if fs.NArg() > 0 {
		return GenerateFlags{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return f, nil
}
