package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/familyhub/internal/auth"
	"github.com/hitoshi/familyhub/internal/config"
	"github.com/hitoshi/familyhub/internal/database"
	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/handler"
	"github.com/hitoshi/familyhub/internal/logger"
	"github.com/hitoshi/familyhub/internal/mail"
	"github.com/hitoshi/familyhub/internal/metrics"
	"github.com/hitoshi/familyhub/internal/middleware"
	"github.com/hitoshi/familyhub/internal/otp"
	"github.com/hitoshi/familyhub/internal/project"
	"github.com/hitoshi/familyhub/internal/repository"
	"github.com/hitoshi/familyhub/internal/security"
	"github.com/hitoshi/familyhub/internal/user"
	"github.com/hitoshi/familyhub/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("mail_provider", cfg.MailProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openRedis はRedisクライアントを生成し、疎通を確認する。
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// newMailer はMAIL_PROVIDERに応じたMailerを返す。
func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.MailProvider == config.MailProviderSendGrid {
		sg := mail.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromAddress)
		return mail.NewRetryingMailer(sg, mail.DefaultMaxAttempts, slog.Default())
	}
	return mail.NewConsoleMailer(slog.Default())
}

// buildHandler は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 返されたRateLimiterはサーバー停止時にStopすること。
func buildHandler(cfg *config.Config, db *sql.DB, rdb *redis.Client) (http.Handler, *middleware.RateLimiter) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	familyRepo := repository.NewPostgresFamilyRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	invitationRepo := repository.NewPostgresInvitationRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	sprintRepo := repository.NewPostgresSprintRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	// 3. 認証基盤
	mailer := newMailer(cfg)
	hasher := auth.NewBcryptHasher()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	otpManager := otp.NewManager(otp.NewRedisStore(rdb), otp.Config{
		Length:         cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
	})

	// 4. ドメインサービス
	authService := auth.NewService(
		userRepo, otpManager, mailer, tokens,
		auth.NewRedisTokenBlacklist(rdb), hasher, collector,
	)
	userService := user.NewService(userRepo, memberRepo, hasher)
	familyService := family.NewService(
		familyRepo, memberRepo, invitationRepo, userRepo, mailer, collector,
		family.Config{InvitationTTL: cfg.InvitationTTL, BaseURL: cfg.BaseURL},
	)
	projectService := project.NewService(
		memberRepo, projectRepo, sprintRepo, taskRepo, commentRepo,
		security.NewTextSanitizer(),
	)

	// 5. ルーター
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		HealthHandler:  handler.NewHealthHandler(db, database.RedisPinger{Client: rdb}),
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		UserService: userService,

		FamilyService:     familyService,
		InvitationService: familyService,

		ProjectService: projectService,
		SprintService:  projectService,
		TaskService:    projectService,
		CommentService: projectService,
	})

	return router, limiter
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("redis connection established")

	router, limiter := buildHandler(cfg, db, rdb)
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 起動直後と以後24時間ごとにクリーンアップジョブを実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(
		repository.NewPostgresInvitationRepo(db),
		repository.NewPostgresUserRepo(db),
		slog.Default(),
		nil,
	)
	job.UnverifiedRetentionDays = cfg.UnverifiedUserRetentionDays

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("unverified_retention_days", job.UnverifiedRetentionDays),
	)

	runEvery(ctx, cleanupInterval, job.Run)

	slog.Info("worker stopped gracefully")
	return nil
}

// runEvery はfnを即時に1回実行し、以後intervalごとにctxがキャンセルされるまで実行する。
// fnのエラーはログに記録して継続する。
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context) error) {
	run := func() {
		if err := fn(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(healthURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
