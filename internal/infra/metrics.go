package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "license_management"

// Metrics はライセンス発行・検証と署名鍵操作のPrometheusメトリクスを保持する。
type Metrics struct {
	registry      *prometheus.Registry
	issued        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	keyOperations *prometheus.CounterVec
}

// NewMetrics は専用レジストリにメトリクスを登録する。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "licenses_issued_total",
			Help:      "Number of issued licenses.",
		}, []string{"application_code"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "license_verifications_total",
			Help:      "Number of license verifications by result.",
		}, []string{"application_code", "result"}),
		keyOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signing_key_operations_total",
			Help:      "Number of signing key operations by operation and result.",
		}, []string{"operation", "result"}),
	}
	m.registry.MustRegister(
		m.issued,
		m.verifications,
		m.keyOperations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// LicenseIssued はライセンスの発行を記録する。
func (m *Metrics) LicenseIssued(applicationCode string) {
	m.issued.WithLabelValues(applicationCode).Inc()
}

// LicenseVerified はライセンス検証の結果を記録する。
func (m *Metrics) LicenseVerified(applicationCode, result string) {
	m.verifications.WithLabelValues(applicationCode, result).Inc()
}

// KeyOperation は署名鍵操作の結果を記録する。
func (m *Metrics) KeyOperation(operation, result string) {
	m.keyOperations.WithLabelValues(operation, result).Inc()
}

// Handler は/metrics用のハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
