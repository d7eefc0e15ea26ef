package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/cmsadmin/internal/auth"
	"github.com/hitoshi/cmsadmin/internal/config"
	"github.com/hitoshi/cmsadmin/internal/database"
	"github.com/hitoshi/cmsadmin/internal/exception"
	"github.com/hitoshi/cmsadmin/internal/flash"
	"github.com/hitoshi/cmsadmin/internal/generator"
	"github.com/hitoshi/cmsadmin/internal/handler"
	"github.com/hitoshi/cmsadmin/internal/i18n"
	"github.com/hitoshi/cmsadmin/internal/logger"
	"github.com/hitoshi/cmsadmin/internal/metrics"
	"github.com/hitoshi/cmsadmin/internal/middleware"
	"github.com/hitoshi/cmsadmin/internal/repository"
	"github.com/hitoshi/cmsadmin/internal/role"
	"github.com/hitoshi/cmsadmin/internal/security"
	"github.com/hitoshi/cmsadmin/internal/user"
	"github.com/hitoshi/cmsadmin/internal/view"
	"github.com/hitoshi/cmsadmin/internal/worker/cleanup"
)

// loadDotEnv はカレントディレクトリの.envを読み込む。ファイルが無い場合は何もしない。
// 既に設定済みの環境変数は上書きしない。
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// generate-admin-tests はDBやOAuthの設定を必要としない
	if cmd == CommandGenerateAdminTests {
		logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))
		return runGenerate(args[1:], os.Stdin, os.Stdout, generator.IsInteractive(os.Stdin))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe は管理画面サーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established",
		slog.Int("max_open_conns", cfg.DBMaxOpenConns),
	)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	groupRepo := repository.NewPostgresGroupRepo(db)
	roleRepo := repository.NewPostgresRoleRepo(db)
	exceptionRepo := repository.NewPostgresExceptionRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. 画面まわり
	flashes := flash.NewStore(cfg.SessionSecret, cfg.CookieSecure, cfg.CookieDomain)
	translator := i18n.New(cfg.DefaultLocale)
	renderer, err := view.NewRenderer(translator, flashes)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 5. 認証
	rules, err := auth.NewDomainRules(cfg.HostedDomains)
	if err != nil {
		return fmt.Errorf("invalid hosted domain rules: %w", err)
	}
	if len(cfg.HostedDomains) == 0 {
		slog.Warn("no hosted domains configured, every sign-in will be rejected")
	}

	verifier := auth.NewGoogleIDTokenVerifier(auth.GoogleIDTokenConfig{
		ClientID: cfg.GoogleClientID,
		CertsURL: cfg.GoogleCertsURL,
	})
	provisioner := auth.NewProvisioner(
		rules, auth.NewRepositoryUserFinder(userRepo), userRepo, groupRepo,
		auth.WithProvisionerMetrics(collector),
	)
	gate := auth.NewGate(verifier, provisioner, flashes, collector)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
	})
	authService := auth.NewService(
		oauthProvider, gate, userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 6. ドメインサービスの初期化
	exceptionService := exception.NewService(exceptionRepo, collector, cfg.ExceptionPageSize)
	roleService := role.NewService(roleRepo, security.NewTextSanitizer())
	userService := user.NewService(userRepo)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:  db,
		UserLoader:     authService,
		RateLimiter:    rateLimiter,
		Flashes:        flashes,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,

		Renderer:      renderer,
		StaticHandler: view.StaticHandler("/admin/static/"),

		Gate:        gate,
		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			GoogleClientID: cfg.GoogleClientID,
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			SessionMaxAge:  cfg.SessionMaxAge,
		},

		ExceptionService: exceptionService,
		RoleService:      roleService,
		UserService:      userService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("admin server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down admin server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("admin server stopped gracefully")
	return nil
}

// runCleanup は保持期間を過ぎた解決済み例外と期限切れセッションを削除して終了する。
// cronやKubernetesのCronJobから定期実行することを想定している。
func runCleanup(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	exceptionService := exception.NewService(
		repository.NewPostgresExceptionRepo(db), nil, cfg.ExceptionPageSize,
	)
	job := cleanup.NewCleanupJob(exceptionService, repository.NewPostgresSessionRepo(db), slog.Default())
	job.RetentionDays = cfg.ExceptionRetentionDays

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// runGenerate はgenerate-admin-testsを実行する。
// 対象プロジェクトがレガシーレイアウトで名前空間が未指定の場合、端末からの入力であれば問い合わせる。
func runGenerate(args []string, in io.Reader, out io.Writer, interactive bool) error {
	flags, err := ParseGenerateFlags(args, out)
	if err != nil {
		return err
	}

	gen, err := generator.New(slog.Default())
	if err != nil {
		return err
	}

	result, err := gen.Generate(generator.Options{
		ProjectDir:  flags.ProjectDir,
		Namespace:   flags.Namespace,
		Interactive: interactive,
		In:          in,
		Out:         out,
		Force:       flags.Force,
	})
	if err != nil {
		return fmt.Errorf("generate-admin-tests failed: %w", err)
	}

	fmt.Fprintf(out, "Generated %d file(s) in %s\n", len(result.Written), result.Target.Dir)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// openDatabase は設定に従ってDBに接続し、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(context.Background(), cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, 10*time.Second)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
