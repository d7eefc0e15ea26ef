package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/cmsadmin/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleAuthURL      string
	GoogleTokenURL     string
	GoogleCertsURL     string

	// HostedDomains はメールドメインとアクセスレベルの対応表。設定順に評価される。
	HostedDomains []model.DomainAccessRule

	// Session
	SessionSecret string
	SessionMaxAge int

	// Rate Limit
	RateLimitSignin  int
	RateLimitGeneral int

	// Exceptions
	ExceptionRetentionDays int
	ExceptionPageSize      int

	// Locale
	DefaultLocale string

	// Logging
	LogLevel string

	// Server
	ServerPort      string
	BaseURL         string
	ShutdownTimeout time.Duration

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはOAUTH_HOSTED_DOMAINSが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	domains, err := ParseHostedDomains(os.Getenv("OAUTH_HOSTED_DOMAINS"))
	if err != nil {
		return nil, fmt.Errorf("invalid OAUTH_HOSTED_DOMAINS: %w", err)
	}
	cfg.HostedDomains = domains

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.GoogleAuthURL = getEnvString("GOOGLE_AUTH_URL", "")
	cfg.GoogleTokenURL = getEnvString("GOOGLE_TOKEN_URL", "")
	cfg.GoogleCertsURL = getEnvString("GOOGLE_CERTS_URL", "")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitSignin = getEnvInt("RATE_LIMIT_SIGNIN", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ExceptionRetentionDays = getEnvInt("EXCEPTION_RETENTION_DAYS", 90)
	cfg.ExceptionPageSize = getEnvInt("EXCEPTION_PAGE_SIZE", 20)
	cfg.DefaultLocale = getEnvString("DEFAULT_LOCALE", "en")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

// ParseHostedDomains はJSON配列形式のドメインルールを解析する。
// 例: [{"domain_name":"acme.com","access_levels":["editor","reviewer"]}]
// 空文字列の場合は空のルール（全ドメイン拒否）を返す。
// domain_nameは正規表現として末尾一致で評価されるため、コンパイルできない場合はエラーとする。
func ParseHostedDomains(raw string) ([]model.DomainAccessRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var rules []model.DomainAccessRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("failed to parse domain rules: %w", err)
	}

	for i, rule := range rules {
		if strings.TrimSpace(rule.DomainName) == "" {
			return nil, fmt.Errorf("rule %d: domain_name is empty", i)
		}
		if _, err := regexp.Compile(rule.DomainName + "$"); err != nil {
			return nil, fmt.Errorf("rule %d: invalid domain_name pattern %q: %w", i, rule.DomainName, err)
		}
	}

	return rules, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
