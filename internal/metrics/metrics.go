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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordItemCreated()
	RecordItemUpdated()
	RecordItemDeleted()
	RecordImageServed(bytes int)
	RecordSignInSuccess()
	RecordSignInFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	itemsCreated    prometheus.Counter
	itemsUpdated    prometheus.Counter
	itemsDeleted    prometheus.Counter
	imageBytes      prometheus.Counter
	signInSuccess   prometheus.Counter
	signInFailure   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_items_created_total",
			Help: "作成されたアイテムの合計数",
		}),
		itemsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_items_updated_total",
			Help: "更新されたアイテムの合計数",
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_items_deleted_total",
			Help: "削除されたアイテムの合計数",
		}),
		imageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_image_bytes_served_total",
			Help: "配信された画像の合計バイト数",
		}),
		signInSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_signin_success_total",
			Help: "Googleサインイン成功の合計数",
		}),
		signInFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_signin_failure_total",
			Help: "Googleサインイン失敗の理由別合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.itemsCreated,
		c.itemsUpdated,
		c.itemsDeleted,
		c.imageBytes,
		c.signInSuccess,
		c.signInFailure,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordItemCreated はアイテム作成を記録する。
func (c *Collector) RecordItemCreated() {
	c.itemsCreated.Inc()
}

// RecordItemUpdated はアイテム更新を記録する。
func (c *Collector) RecordItemUpdated() {
	c.itemsUpdated.Inc()
}

// RecordItemDeleted はアイテム削除を記録する。
func (c *Collector) RecordItemDeleted() {
	c.itemsDeleted.Inc()
}

// RecordImageServed は配信した画像のバイト数を記録する。
func (c *Collector) RecordImageServed(bytes int) {
	c.imageBytes.Add(float64(bytes))
}

// RecordSignInSuccess はサインイン成功を記録する。
func (c *Collector) RecordSignInSuccess() {
	c.signInSuccess.Inc()
}

// RecordSignInFailure はサインイン失敗を理由付きで記録する。
func (c *Collector) RecordSignInFailure(reason string) {
	c.signInFailure.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
