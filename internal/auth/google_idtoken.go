package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultGoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"
	defaultCertsTTL       = time.Hour

	// minCertsRefetchInterval は未知のkidによる再取得の最短間隔。
	minCertsRefetchInterval = time.Minute
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleIDTokenConfig はGoogle IDトークン検証の設定。
type GoogleIDTokenConfig struct {
	ClientID string

	// テスト用にオーバーライド可能なURL
	CertsURL string

	HTTPClient *http.Client
}

// GoogleIDTokenVerifier はGoogleが発行したRS256署名のIDトークンを公開鍵（JWKS）で検証する。
// 公開鍵はCache-Controlのmax-ageに従ってキャッシュする。
type GoogleIDTokenVerifier struct {
	config GoogleIDTokenConfig
	now    func() time.Time

	// fetchMu はJWKS取得を直列化する。muは取得中も保持しない。
	fetchMu   sync.Mutex
	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	keysUntil time.Time
	fetchedAt time.Time
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
func NewGoogleIDTokenVerifier(config GoogleIDTokenConfig) *GoogleIDTokenVerifier {
	if config.CertsURL == "" {
		config.CertsURL = defaultGoogleCertsURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleIDTokenVerifier{
		config: config,
		now:    time.Now,
	}
}

type googleIDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Verify はIDトークンの署名、発行者、audience、有効期限を検証する。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedIdentity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrRejected)
	}

	var fetchErr error
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.publicKey(ctx, kid)
		if err != nil {
			if !errors.Is(err, ErrRejected) {
				fetchErr = err
			}
			return nil, err
		}
		return key, nil
	}

	claims := &googleIDClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithAudience(v.config.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if fetchErr != nil {
		// 鍵取得の失敗は拒否ではなくエラーとして返す
		return nil, fmt.Errorf("failed to load google certs: %w", fetchErr)
	}
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrRejected, claims.Issuer)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing sub or email", ErrRejected)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrRejected)
	}

	return &VerifiedIdentity{
		Email:   strings.ToLower(claims.Email),
		Subject: claims.Subject,
	}, nil
}

// publicKey はkidに対応する公開鍵を返す。
// キャッシュ切れか未知のkidの場合に再取得するが、未知のkidによる再取得は
// minCertsRefetchIntervalに1回までとする。
func (v *GoogleIDTokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok, fetch := v.cachedKey(kid); !fetch {
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	}

	v.fetchMu.Lock()
	defer v.fetchMu.Unlock()

	// 待っている間に他のリクエストが取得済みならそれを使う
	if key, ok, fetch := v.cachedKey(kid); !fetch {
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	}

	keys, ttl, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}

	now := v.now()
	v.mu.Lock()
	v.keys = keys
	v.keysUntil = now.Add(ttl)
	v.fetchedAt = now
	v.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, errUnknownKey
	}
	return key, nil
}

// cachedKey はキャッシュからkidの鍵を探す。fetchが真ならJWKSの再取得が必要。
func (v *GoogleIDTokenVerifier) cachedKey(kid string) (key *rsa.PublicKey, ok, fetch bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if v.keys == nil || !now.Before(v.keysUntil) {
		return nil, false, true
	}
	if key, ok := v.keys[kid]; ok {
		return key, true, false
	}
	return nil, false, now.Sub(v.fetchedAt) >= minCertsRefetchInterval
}

// errUnknownKey は署名鍵が見つからないことを表す。トークン側の問題として扱う。
var errUnknownKey = fmt.Errorf("%w: unknown signing key", ErrRejected)

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// fetchKeys はJWKSエンドポイントから公開鍵を取得する。
func (v *GoogleIDTokenVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.CertsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create certs request: %w", err)
	}

	resp, err := v.config.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("certs request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read certs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("certs fetch failed with status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to parse certs response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	return keys, cacheTTL(resp.Header.Get("Cache-Control")), nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() <= 1 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}

// cacheTTL はCache-Controlヘッダーのmax-ageを返す。無い場合は既定値を返す。
func cacheTTL(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if v, ok := strings.CutPrefix(directive, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return defaultCertsTTL
}

// compile-time interface check
var _ IdentityVerifier = (*GoogleIDTokenVerifier)(nil)
