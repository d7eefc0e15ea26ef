package generator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// IsInteractive はfが端末に接続されていればtrueを返す。
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var promptIntro = []string{
	"",
	"This command helps you to generate tests to test the admin of the default site setup.",
	"You must specify the namespace of the bundle where you want to generate the tests.",
	"Use / instead of \\ for the namespace delimiter to avoid any problem.",
	"",
}

// AskNamespace は有効な名前空間が入力されるまで問い合わせる。
// 入力が途切れた場合はErrNamespaceRequiredを返す。
func AskNamespace(in io.Reader, out io.Writer) (string, error) {
	for _, line := range promptIntro {
		fmt.Fprintln(out, line)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Bundle namespace: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read namespace: %w", err)
			}
			fmt.Fprintln(out)
			return "", ErrNamespaceRequired
		}

		ns, err := ValidateNamespace(scanner.Text())
		if err == nil {
			return ns, nil
		}
		if errors.Is(err, ErrNamespaceRequired) {
			fmt.Fprintln(out, "The namespace cannot be empty.")
			continue
		}
		fmt.Fprintln(out, err.Error())
	}
}
