package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 授权生命周期指标（kind: phone / shop）
	LicensesCreated  *prometheus.CounterVec
	LicensesSkipped  *prometheus.CounterVec
	LicensesExtended *prometheus.CounterVec
	LicensesDeleted  *prometheus.CounterVec
	LicensesTotal    *prometheus.GaugeVec

	// 验证指标（kind + outcome: valid / expired / not_found）
	VerificationsTotal *prometheus.CounterVec

	// 认证指标（method: api_key / jwt）
	AuthFailures *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// 指标标签取值
const (
	KindPhone = "phone"
	KindShop  = "shop"

	OutcomeValid    = "valid"
	OutcomeExpired  = "expired"
	OutcomeNotFound = "not_found"
)

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "licenses_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "licenses_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		LicensesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_created_total",
				Help: "Total number of licenses created",
			},
			[]string{"kind"},
		),

		LicensesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_skipped_total",
				Help: "Total number of identifiers skipped on create",
			},
			[]string{"kind"},
		),

		LicensesExtended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_extended_total",
				Help: "Total number of license extensions",
			},
			[]string{"kind"},
		),

		LicensesDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_deleted_total",
				Help: "Total number of licenses deleted",
			},
			[]string{"kind"},
		),

		LicensesTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "licenses_total",
				Help: "Current number of licenses on record",
			},
			[]string{"kind"},
		),

		VerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_verifications_total",
				Help: "Total number of verification calls by outcome",
			},
			[]string{"kind", "outcome"},
		),

		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_auth_failures_total",
				Help: "Total number of failed authentication attempts",
			},
			[]string{"method"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "licenses_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licenses_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordLicensesCreated 记录授权创建结果
func (m *Metrics) RecordLicensesCreated(kind string, created, skipped int) {
	m.LicensesCreated.WithLabelValues(kind).Add(float64(created))
	m.LicensesSkipped.WithLabelValues(kind).Add(float64(skipped))
}

// RecordLicenseExtended 记录授权续期
func (m *Metrics) RecordLicenseExtended(kind string) {
	m.LicensesExtended.WithLabelValues(kind).Inc()
}

// RecordLicensesDeleted 记录授权删除
func (m *Metrics) RecordLicensesDeleted(kind string, count int) {
	m.LicensesDeleted.WithLabelValues(kind).Add(float64(count))
}

// RecordVerification 记录验证调用结果
func (m *Metrics) RecordVerification(kind, outcome string) {
	m.VerificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordAuthFailure 记录认证失败
func (m *Metrics) RecordAuthFailure(method string) {
	m.AuthFailures.WithLabelValues(method).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// UpdateLicensesTotal 更新授权总数
func (m *Metrics) UpdateLicensesTotal(kind string, count int) {
	m.LicensesTotal.WithLabelValues(kind).Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
