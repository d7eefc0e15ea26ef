// Package i18n は管理画面のフラッシュメッセージ等の翻訳を提供する。
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// メッセージキー
const (
	KeyOAuthInvalid       = "errors.oauth.invalid"
	KeyRoleAdded          = "roles.add.flash.success"
	KeyRoleEdited         = "roles.edit.flash.success"
	KeyRoleDeleted        = "roles.delete.flash.success"
	KeyExceptionsResolved = "exceptions.resolve_all.flash.success"
	KeyExceptionToggled   = "exceptions.toggle.flash.success"
	KeyPasswordRequired   = "password.change.flash.required"
	KeyPasswordChanged    = "password.change.flash.success"
	KeyLoggedOut          = "security.logout.flash.success"
)

var supported = []language.Tag{
	language.English,
	language.Dutch,
	language.Japanese,
}

var entries = map[string]map[language.Tag]string{
	KeyOAuthInvalid: {
		language.English:  "Google sign-in failed. Your account is not allowed to access the admin.",
		language.Dutch:    "Aanmelden met Google is mislukt. Je account heeft geen toegang tot de beheeromgeving.",
		language.Japanese: "Googleでのログインに失敗しました。このアカウントには管理画面へのアクセス権がありません。",
	},
	KeyRoleAdded: {
		language.English:  "Role '%s' has been created.",
		language.Dutch:    "Rol '%s' is aangemaakt.",
		language.Japanese: "ロール「%s」を作成しました。",
	},
	KeyRoleEdited: {
		language.English:  "Role '%s' has been updated.",
		language.Dutch:    "Rol '%s' is bijgewerkt.",
		language.Japanese: "ロール「%s」を更新しました。",
	},
	KeyRoleDeleted: {
		language.English:  "Role '%s' has been deleted.",
		language.Dutch:    "Rol '%s' is verwijderd.",
		language.Japanese: "ロール「%s」を削除しました。",
	},
	KeyExceptionsResolved: {
		language.English:  "All exceptions have been marked as resolved.",
		language.Dutch:    "Alle fouten zijn als opgelost gemarkeerd.",
		language.Japanese: "全ての例外を解決済みにしました。",
	},
	KeyExceptionToggled: {
		language.English:  "Exception status has been updated.",
		language.Dutch:    "De status van de fout is bijgewerkt.",
		language.Japanese: "例外の状態を更新しました。",
	},
	KeyPasswordRequired: {
		language.English:  "Please change your password before continuing.",
		language.Dutch:    "Wijzig je wachtwoord voordat je verdergaat.",
		language.Japanese: "続行する前にパスワードを変更してください。",
	},
	KeyPasswordChanged: {
		language.English:  "Your password has been changed.",
		language.Dutch:    "Je wachtwoord is gewijzigd.",
		language.Japanese: "パスワードを変更しました。",
	},
	KeyLoggedOut: {
		language.English:  "You have been logged out.",
		language.Dutch:    "Je bent afgemeld.",
		language.Japanese: "ログアウトしました。",
	},
}

// Translator はロケールごとのメッセージカタログを保持する。
type Translator struct {
	catalog  *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

// New はTranslatorを生成する。defaultLocaleが未対応の場合は英語を既定とする。
func New(defaultLocale string) *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, byTag := range entries {
		for tag, msg := range byTag {
			// エントリは静的に定義しているため失敗しない
			_ = b.SetString(tag, key, msg)
		}
	}

	t := &Translator{
		catalog:  b,
		matcher:  language.NewMatcher(supported),
		fallback: language.English,
	}
	t.fallback = t.Match(defaultLocale)
	return t
}

// Supported は対応ロケールの一覧を返す。
func (t *Translator) Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// Default は既定ロケールを返す。
func (t *Translator) Default() language.Tag {
	return t.fallback
}

// Match はロケール文字列を対応ロケールに丸める。解釈できない場合は既定ロケールを返す。
func (t *Translator) Match(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return t.fallback
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.fallback
	}
	return supported[idx]
}

// Resolve はユーザーの管理画面ロケールを優先し、次にAccept-Languageからロケールを決定する。
func (t *Translator) Resolve(r *http.Request, userLocale string) language.Tag {
	if strings.TrimSpace(userLocale) != "" {
		return t.Match(userLocale)
	}
	if r != nil {
		if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
			if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
				_, idx, conf := t.matcher.Match(tags...)
				if conf != language.No {
					return supported[idx]
				}
			}
		}
	}
	return t.fallback
}

// Translate はキーを指定ロケールの文言に変換する。未登録のキーはそのまま返す。
func (t *Translator) Translate(tag language.Tag, key string, args ...any) string {
	p := message.NewPrinter(tag, message.Catalog(t.catalog))
	return p.Sprintf(key, args...)
}
