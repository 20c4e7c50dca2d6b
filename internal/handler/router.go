package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/familyhub/internal/auth"
	"github.com/hitoshi/familyhub/internal/family"
	"github.com/hitoshi/familyhub/internal/metrics"
	"github.com/hitoshi/familyhub/internal/middleware"
	"github.com/hitoshi/familyhub/internal/project"
	"github.com/hitoshi/familyhub/internal/user"
)

var (
	_ AuthServiceInterface       = (*auth.Service)(nil)
	_ UserServiceInterface       = (*user.Service)(nil)
	_ FamilyServiceInterface     = (*family.Service)(nil)
	_ InvitationServiceInterface = (*family.Service)(nil)
	_ ProjectServiceInterface    = (*project.Service)(nil)
	_ SprintServiceInterface     = (*project.Service)(nil)
	_ TaskServiceInterface       = (*project.Service)(nil)
	_ CommentServiceInterface    = (*project.Service)(nil)
	_ HealthChecker              = (*sql.DB)(nil)
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.AccessTokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント。nilの場合はルートを登録しない。
	HealthHandler  http.Handler
	MetricsHandler http.Handler

	// 認証・ユーザー
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// 家族・招待
	FamilyService     FamilyServiceInterface
	InvitationService InvitationServiceInterface

	// プロジェクト
	ProjectService ProjectServiceInterface
	SprintService  SprintServiceInterface
	TaskService    TaskServiceInterface
	CommentService CommentServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Metrics
//
// 認証不要の認証ルートにはIP単位のレート制限を、それ以外のAPIルートには
// JWT認証 → ユーザー単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	if deps.HealthHandler != nil {
		r.Method(http.MethodGet, "/health", deps.HealthHandler)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	familyHandler := NewFamilyHandler(deps.FamilyService)
	invitationHandler := NewInvitationHandler(deps.InvitationService)
	projectHandler := NewProjectHandler(deps.ProjectService)
	sprintHandler := NewSprintHandler(deps.SprintService)
	taskHandler := NewTaskHandler(deps.TaskService)
	commentHandler := NewCommentHandler(deps.CommentService)

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/verify-otp", authHandler.VerifyOTP)
		r.Post("/api/auth/resend-otp", authHandler.ResendOTP)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/refresh", authHandler.Refresh)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ログイン中ユーザー
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", userHandler.Me)
		r.Patch("/api/auth/me", userHandler.UpdateProfile)
		r.Delete("/api/auth/me", userHandler.Withdraw)
		r.Post("/api/auth/change-password", userHandler.ChangePassword)

		// 家族
		r.Post("/api/families", familyHandler.Create)
		r.Route("/api/families/me", func(r chi.Router) {
			r.Get("/", familyHandler.Get)
			r.Patch("/", familyHandler.Rename)
			r.Delete("/", familyHandler.Delete)
			r.Post("/leave", familyHandler.Leave)

			r.Get("/members", familyHandler.ListMembers)
			r.Patch("/members/{user_id}", familyHandler.ChangeRole)
			r.Delete("/members/{user_id}", familyHandler.RemoveMember)

			r.Get("/invitations", familyHandler.ListInvitations)
			r.Post("/invitations", familyHandler.CreateInvitation)
			r.Delete("/invitations/{id}", familyHandler.RevokeInvitation)
		})

		// 招待への応答
		r.Route("/api/invitations/{token}", func(r chi.Router) {
			r.Get("/", invitationHandler.Preview)
			r.Post("/accept", invitationHandler.Accept)
			r.Post("/switch", invitationHandler.Switch)
			r.Post("/decline", invitationHandler.Decline)
		})

		// プロジェクト
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Patch("/", projectHandler.Update)
				r.Delete("/", projectHandler.Delete)

				r.Get("/sprints", sprintHandler.List)
				r.Post("/sprints", sprintHandler.Create)
				r.Get("/tasks", taskHandler.List)
				r.Post("/tasks", taskHandler.Create)
			})
		})

		// スプリント
		r.Route("/api/sprints/{id}", func(r chi.Router) {
			r.Get("/", sprintHandler.Get)
			r.Patch("/", sprintHandler.Update)
			r.Delete("/", sprintHandler.Delete)
			r.Post("/start", sprintHandler.Start)
			r.Post("/complete", sprintHandler.Complete)
		})

		// タスク・コメント
		r.Route("/api/tasks/{id}", func(r chi.Router) {
			r.Get("/", taskHandler.Get)
			r.Patch("/", taskHandler.Update)
			r.Delete("/", taskHandler.Delete)

			r.Get("/comments", commentHandler.List)
			r.Post("/comments", commentHandler.Create)
		})
		r.Route("/api/comments/{id}", func(r chi.Router) {
			r.Patch("/", commentHandler.Update)
			r.Delete("/", commentHandler.Delete)
		})
	})

	return r
}
