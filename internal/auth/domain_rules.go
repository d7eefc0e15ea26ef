package auth

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// DomainRules はメールアドレスに適用するドメインルールの一覧。
// ルールは設定順に評価し、最初にマッチしたものを採用する。
type DomainRules struct {
	rules []compiledRule
}

type compiledRule struct {
	rule    model.DomainAccessRule
	pattern *regexp.Regexp
}

// NewDomainRules はルールの domain_name を末尾一致の正規表現としてコンパイルする。
// パターンは書かれたまま使い、大文字小文字だけを区別しない。
func NewDomainRules(rules []model.DomainAccessRule) (*DomainRules, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		pattern, err := regexp.Compile("(?i)" + r.DomainName + "$")
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid domain pattern %q: %w", i, r.DomainName, err)
		}
		compiled = append(compiled, compiledRule{rule: r, pattern: pattern})
	}
	return &DomainRules{rules: compiled}, nil
}

// Match はメールアドレスに最初にマッチしたルールを返す。
// ドメイン部はpunycode表記とUnicode表記の両方で比較するので、
// ルールはどちらの表記で書いてもよい。
func (d *DomainRules) Match(email string) (model.DomainAccessRule, bool) {
	if d == nil {
		return model.DomainAccessRule{}, false
	}
	forms, ok := emailForms(email)
	if !ok {
		return model.DomainAccessRule{}, false
	}
	for _, r := range d.rules {
		for _, f := range forms {
			if r.pattern.MatchString(f) {
				return r.rule, true
			}
		}
	}
	return model.DomainAccessRule{}, false
}

// Len はルール数を返す。
func (d *DomainRules) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rules)
}

// emailForms はメールアドレスを小文字化し、ドメイン部をpunycodeとUnicodeに正規化した表記を返す。
func emailForms(email string) ([]string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return nil, false
	}
	local, domain := email[:at+1], email[at+1:]

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return []string{email}, true
	}
	forms := []string{local + ascii}
	if unicode, err := idna.Lookup.ToUnicode(ascii); err == nil && unicode != ascii {
		forms = append(forms, local+unicode)
	}
	return forms, true
}
