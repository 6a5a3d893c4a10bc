// Package metrics は、Prometheus のメトリクスを提供します。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskstation"

// ストレージモードのラベル値
const (
	StorageInline   = "inline"
	StorageExternal = "external"
)

// Metrics はアプリケーションのメトリクスをまとめたものです。
// nil の *Metrics に対する記録は何もしません。
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TasksCreated    *prometheus.CounterVec
	TasksSwept      prometheus.Counter
}

// New はメトリクスを作成し、reg に登録します。
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route pattern and status code.",
		}, []string{"method", "pattern", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "pattern"}),
		TasksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Total number of created tasks by attachment storage mode.",
		}, []string{"storage"}),
		TasksSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_marked_overdue_total",
			Help:      "Total number of tasks marked overdue by the sweep.",
		}),
	}
}

// ObserveRequest はHTTPリクエストを1件記録します。
func (m *Metrics) ObserveRequest(method, pattern string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, pattern, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(method, pattern).Observe(elapsed.Seconds())
}

// TaskCreated はタスクの作成を記録します。
func (m *Metrics) TaskCreated(storage string) {
	if m == nil {
		return
	}
	m.TasksCreated.WithLabelValues(storage).Inc()
}

// TasksMarkedOverdue はスイープで更新された件数を記録します。
func (m *Metrics) TasksMarkedOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TasksSwept.Add(float64(n))
}
