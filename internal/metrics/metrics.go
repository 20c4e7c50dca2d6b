// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthEvent(event, outcome string)
	RecordOTPEvent(event string)
	RecordInvitationEvent(event string)
	RecordCleanup(target string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	otpEvents    *prometheus.CounterVec
	invitations  *prometheus.CounterVec
	cleanup      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "familyhub_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータスコード別）",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "familyhub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "familyhub_auth_events_total",
			Help: "認証イベント数（register, login, refresh, logout）",
		}, []string{"event", "outcome"}),
		otpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "familyhub_otp_events_total",
			Help: "認証コードのイベント数（issued, resent, verified, failed, throttled）",
		}, []string{"event"}),
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "familyhub_invitation_events_total",
			Help: "招待のイベント数（created, accepted, switched, declined, revoked）",
		}, []string{"event"}),
		cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "familyhub_cleanup_rows_total",
			Help: "クリーンアップジョブで処理した行数",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.authEvents,
		c.otpEvents,
		c.invitations,
		c.cleanup,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDによるラベル爆発を避ける。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordOTPEvent は認証コードのイベントを記録する。
func (c *Collector) RecordOTPEvent(event string) {
	c.otpEvents.WithLabelValues(event).Inc()
}

// RecordInvitationEvent は招待のイベントを記録する。
func (c *Collector) RecordInvitationEvent(event string) {
	c.invitations.WithLabelValues(event).Inc()
}

// RecordCleanup はクリーンアップの処理件数を加算する。
func (c *Collector) RecordCleanup(target string, count int64) {
	if count <= 0 {
		return
	}
	c.cleanup.WithLabelValues(target).Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス未設定時に使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordAuthEvent(string, string)                       {}
func (NopCollector) RecordOTPEvent(string)                                {}
func (NopCollector) RecordInvitationEvent(string)                         {}
func (NopCollector) RecordCleanup(string, int64)                          {}

// OrNop はcがnilの場合にNopCollectorを返す。
func OrNop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NopCollector{}
	}
	return c
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
