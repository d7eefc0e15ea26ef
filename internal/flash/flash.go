// Package flash は次のリクエストに持ち越す一時データ（フラッシュメッセージ、ログイン後の遷移先）を
// HS256署名付きのJWTクッキーで保持する。
package flash

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName はフラッシュデータを保持するクッキー名。
const CookieName = "admin_flash"

const defaultTTL = time.Hour

// Level はフラッシュメッセージの種別。
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Message はフラッシュメッセージ1件を表す。文言はKeyを翻訳して表示する。
type Message struct {
	Level Level    `json:"level"`
	Key   string   `json:"key"`
	Args  []string `json:"args,omitempty"`
}

// Bag はクッキーに保存される一時データ。
type Bag struct {
	Messages    []Message
	TargetPaths map[string]string
}

// Add はメッセージを追加する。
func (b *Bag) Add(level Level, key string, args ...string) {
	b.Messages = append(b.Messages, Message{Level: level, Key: key, Args: args})
}

// SetTargetPath はプロバイダーごとのログイン後遷移先を保存する。
func (b *Bag) SetTargetPath(provider, path string) {
	if b.TargetPaths == nil {
		b.TargetPaths = make(map[string]string)
	}
	b.TargetPaths[provider] = path
}

// TakeTargetPath は遷移先を取り出して削除する。未設定の場合は空文字列を返す。
func (b *Bag) TakeTargetPath(provider string) string {
	path := b.TargetPaths[provider]
	delete(b.TargetPaths, provider)
	return path
}

// TakeMessages はメッセージを全て取り出して削除する。
func (b *Bag) TakeMessages() []Message {
	msgs := b.Messages
	b.Messages = nil
	return msgs
}

func (b *Bag) empty() bool {
	return len(b.Messages) == 0 && len(b.TargetPaths) == 0
}

type claims struct {
	Messages    []Message         `json:"fl,omitempty"`
	TargetPaths map[string]string `json:"tp,omitempty"`
	jwt.RegisteredClaims
}

// Store は署名付きクッキーとBagの読み書きを行う。
type Store struct {
	secret []byte
	secure bool
	domain string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore はStoreを生成する。secretはSESSION_SECRETを想定する。
func NewStore(secret string, secure bool, domain string) *Store {
	return &Store{
		secret: []byte(secret),
		secure: secure,
		domain: domain,
		ttl:    defaultTTL,
		now:    time.Now,
	}
}

// Load はリクエストのクッキーからBagを読み込む。
// クッキーが無い、署名が不正、期限切れの場合は空のBagを返す。
func (s *Store) Load(r *http.Request) *Bag {
	bag := &Bag{}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return bag
	}

	parsed, err := jwt.ParseWithClaims(cookie.Value, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return bag
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return bag
	}
	bag.Messages = c.Messages
	bag.TargetPaths = c.TargetPaths
	return bag
}

// Save はBagを署名してクッキーに書き込む。空のBagの場合はクッキーを削除する。
func (s *Store) Save(w http.ResponseWriter, bag *Bag) error {
	if bag == nil || bag.empty() {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Domain:   s.domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Messages:    bag.Messages,
		TargetPaths: bag.TargetPaths,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// AddFlash はリクエストのBagにメッセージを1件追加して書き戻す。
func (s *Store) AddFlash(w http.ResponseWriter, r *http.Request, level Level, key string, args ...string) error {
	bag := s.Load(r)
	bag.Add(level, key, args...)
	return s.Save(w, bag)
}
