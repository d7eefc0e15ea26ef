package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "test-client-id.apps.googleusercontent.com"

type jwksServer struct {
	*httptest.Server
	key      *rsa.PrivateKey
	kid      string
	requests atomic.Int32
	status   int
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	s := &jwksServer{key: key, kid: "kid-1", status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": s.kid,
				"kty": "RSA",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1234567890",
		"email":          "Jane@Acme.com",
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(s *jwksServer) *GoogleIDTokenVerifier {
	return NewGoogleIDTokenVerifier(GoogleIDTokenConfig{
		ClientID: testClientID,
		CertsURL: s.URL,
	})
}

func TestGoogleIDTokenVerifier_ValidToken(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)

	identity, err := v.Verify(context.Background(), s.sign(t, s.kid, validClaims()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if identity.Subject != "1234567890" {
		t.Errorf("Subject = %q", identity.Subject)
	}
	if identity.Email != "jane@acme.com" {
		t.Errorf("Email = %q, want lowercased jane@acme.com", identity.Email)
	}
}

func TestGoogleIDTokenVerifier_IssuerWithoutScheme(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)
	claims := validClaims()
	claims["iss"] = "accounts.google.com"

	if _, err := v.Verify(context.Background(), s.sign(t, s.kid, claims)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestGoogleIDTokenVerifier_RejectedTokens(t *testing.T) {
	s := newJWKSServer(t)

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
	}{
		{"expired", "kid-1", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{"missing exp", "kid-1", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"wrong audience", "kid-1", func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{"wrong issuer", "kid-1", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"email not verified", "kid-1", func(c jwt.MapClaims) { c["email_verified"] = false }},
		{"missing email", "kid-1", func(c jwt.MapClaims) { delete(c, "email") }},
		{"missing sub", "kid-1", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"unknown kid", "kid-unknown", func(jwt.MapClaims) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(s)
			claims := validClaims()
			tt.mutate(claims)

			_, err := v.Verify(context.Background(), s.sign(t, tt.kid, claims))
			if !errors.Is(err, ErrRejected) {
				t.Errorf("error = %v, want ErrRejected", err)
			}
		})
	}
}

func TestGoogleIDTokenVerifier_MalformedToken(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)

	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrRejected) {
			t.Errorf("Verify(%q) error = %v, want ErrRejected", raw, err)
		}
	}
}

func TestGoogleIDTokenVerifier_WrongSigningKey(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	token.Header["kid"] = s.kid
	raw, err := token.SignedString(other)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrRejected) {
		t.Errorf("error = %v, want ErrRejected", err)
	}
}

func TestGoogleIDTokenVerifier_CertsUnavailable_IsNotRejection(t *testing.T) {
	s := newJWKSServer(t)
	s.status = http.StatusInternalServerError
	v := newTestVerifier(s)

	_, err := v.Verify(context.Background(), s.sign(t, s.kid, validClaims()))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRejected) {
		t.Errorf("certs outage must not be a rejection: %v", err)
	}
}

func TestGoogleIDTokenVerifier_CachesKeys(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)
	raw := s.sign(t, s.kid, validClaims())

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), raw); err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
	}
	if n := s.requests.Load(); n != 1 {
		t.Errorf("certs requests = %d, want 1", n)
	}

	// キャッシュ期限切れ後は再取得する
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	claims := validClaims()
	claims["exp"] = time.Now().Add(3 * time.Hour).Unix()
	if _, err := v.Verify(context.Background(), s.sign(t, s.kid, claims)); err != nil {
		t.Fatalf("verify after expiry: %v", err)
	}
	if n := s.requests.Load(); n != 2 {
		t.Errorf("certs requests = %d, want 2", n)
	}
}

func TestGoogleIDTokenVerifier_UnknownKidRefetchIsThrottled(t *testing.T) {
	s := newJWKSServer(t)
	v := newTestVerifier(s)
	base := time.Now()
	v.now = func() time.Time { return base }

	if _, err := v.Verify(context.Background(), s.sign(t, s.kid, validClaims())); err != nil {
		t.Fatalf("verify: %v", err)
	}

	unknown := s.sign(t, "kid-rotated", validClaims())
	for i := 0; i < 5; i++ {
		if _, err := v.Verify(context.Background(), unknown); !errors.Is(err, ErrRejected) {
			t.Fatalf("verify %d: error = %v, want ErrRejected", i, err)
		}
	}
	if n := s.requests.Load(); n != 1 {
		t.Errorf("certs requests = %d, want 1 within the refetch interval", n)
	}

	// 間隔を過ぎればローテーション後の鍵を取りに行く
	s.kid = "kid-rotated"
	v.now = func() time.Time { return base.Add(minCertsRefetchInterval + time.Second) }
	if _, err := v.Verify(context.Background(), unknown); err != nil {
		t.Fatalf("verify after rotation: %v", err)
	}
	if n := s.requests.Load(); n != 2 {
		t.Errorf("certs requests = %d, want 2", n)
	}
}

func TestCacheTTL(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19800, must-revalidate", 19800 * time.Second},
		{"max-age=60", time.Minute},
		{"no-cache", defaultCertsTTL},
		{"max-age=abc", defaultCertsTTL},
		{"", defaultCertsTTL},
	}
	for _, tt := range tests {
		if got := cacheTTL(tt.header); got != tt.want {
			t.Errorf("cacheTTL(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
