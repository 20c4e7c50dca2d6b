package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は依存先ごとのPingのタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker は疎通確認が可能な依存先を表す。*sql.DBとdatabase.RedisPingerが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はDBとRedisの疎通を確認するヘルスチェックハンドラー。
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。nilの依存先は確認対象から除外する。
func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	checks := make(map[string]HealthChecker, 2)
	if db != nil {
		checks["database"] = db
	}
	if redis != nil {
		checks["redis"] = redis
	}
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP はすべての依存先が応答すれば200、いずれかが失敗すれば503を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, checker := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.PingContext(ctx)
		cancel()
		if err != nil {
			slog.WarnContext(r.Context(), "health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Checks: failed})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
