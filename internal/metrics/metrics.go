// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// サインイン結果のラベル値
const (
	SigninSuccess  = "success"
	SigninRejected = "rejected"
	SigninError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証、例外ログ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignin(outcome string)
	RecordUserProvisioned()
	RecordExceptionLogged(statusCode int)
	RecordExceptionsResolved(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signin             *prometheus.CounterVec
	usersProvisioned   prometheus.Counter
	exceptionsLogged   *prometheus.CounterVec
	exceptionsResolved prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsadmin_signin_total",
			Help: "OAuthサインインの結果別の合計数",
		}, []string{"outcome"}),
		usersProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmsadmin_users_provisioned_total",
			Help: "サインイン時に自動作成されたユーザーの合計数",
		}),
		exceptionsLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsadmin_exceptions_logged_total",
			Help: "記録された例外のステータスコード別の合計数",
		}, []string{"status_code"}),
		exceptionsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmsadmin_exceptions_resolved_total",
			Help: "解決済みにされた例外レコードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsadmin_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cmsadmin_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signin,
		c.usersProvisioned,
		c.exceptionsLogged,
		c.exceptionsResolved,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignin はサインインの結果を記録する。
func (c *Collector) RecordSignin(outcome string) {
	c.signin.WithLabelValues(outcome).Inc()
}

// RecordUserProvisioned はユーザーの自動作成を記録する。
func (c *Collector) RecordUserProvisioned() {
	c.usersProvisioned.Inc()
}

// RecordExceptionLogged は例外の記録をステータスコード別に数える。
func (c *Collector) RecordExceptionLogged(statusCode int) {
	c.exceptionsLogged.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordExceptionsResolved は解決済みにした件数を加算する。
func (c *Collector) RecordExceptionsResolved(count int64) {
	if count <= 0 {
		return
	}
	c.exceptionsResolved.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
