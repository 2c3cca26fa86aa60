package rpcpool

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"web3-rpcpool-go/internal/recovery"
)

// Metrics holds all Prometheus metrics for the RPC pool
type Metrics struct {
	RPCRequestsTotal    *prometheus.CounterVec
	RPCRequestsFailed   *prometheus.CounterVec
	RPCLatency          *prometheus.HistogramVec
	RPCRetries          *prometheus.CounterVec
	EndpointErrors      *prometheus.GaugeVec
	EndpointScore       *prometheus.GaugeVec
	EndpointVerifyTotal *prometheus.CounterVec
	HealthyEndpoints    *prometheus.GaugeVec
	PanicsRecovered     *prometheus.CounterVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the singleton Metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
		recovery.OnPanic = func(name string, _ interface{}, _ string) {
			metrics.PanicsRecovered.WithLabelValues(name).Inc()
		}
	})
	return metrics
}

// NewMetrics registers the collectors with the default registry. Use GetMetrics
// unless a second registration is really wanted.
func NewMetrics() *Metrics {
	return &Metrics{
		RPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_requests_total",
			Help: "Total number of RPC attempts by endpoint, method and result",
		}, []string{"endpoint", "method", "result"}),
		RPCRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_requests_failed_total",
			Help: "Total number of failed RPC attempts by endpoint and method",
		}, []string{"endpoint", "method"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcpool_request_duration_seconds",
			Help:    "RPC attempt latency by endpoint and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		RPCRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_retries_total",
			Help: "Total number of retries by method",
		}, []string{"method"}),
		EndpointErrors: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_endpoint_consecutive_errors",
			Help: "Current consecutive error streak per endpoint",
		}, []string{"endpoint"}),
		EndpointScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_endpoint_score",
			Help: "Selection score per endpoint after the last verification",
		}, []string{"endpoint"}),
		EndpointVerifyTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_endpoint_verifications_total",
			Help: "Endpoint verification rounds by result",
		}, []string{"endpoint", "result"}),
		HealthyEndpoints: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_healthy_endpoints",
			Help: "Number of endpoints not currently flagged failing",
		}, []string{"chain_id"}),
		PanicsRecovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_goroutine_panics_total",
			Help: "Panics recovered in background goroutines by worker name",
		}, []string{"worker"}),
	}
}

// InitEndpoint 预先创建时间序列，避免面板出现空白
func (m *Metrics) InitEndpoint(endpoint string, methods []string) {
	for _, method := range methods {
		m.RPCRequestsTotal.WithLabelValues(endpoint, method, VerifySuccess.String())
		m.RPCRequestsFailed.WithLabelValues(endpoint, method)
	}
	m.EndpointErrors.WithLabelValues(endpoint).Set(0)
}

// RecordRPCAttempt records a single RPC attempt
func (m *Metrics) RecordRPCAttempt(endpoint, method string, kind VerifyKind, duration time.Duration) {
	m.RPCRequestsTotal.WithLabelValues(endpoint, method, kind.String()).Inc()
	m.RPCLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	if kind != VerifySuccess {
		m.RPCRequestsFailed.WithLabelValues(endpoint, method).Inc()
	}
}

// RecordRPCRetry records a retry of a logical call
func (m *Metrics) RecordRPCRetry(method string) {
	m.RPCRetries.WithLabelValues(method).Inc()
}

// UpdateEndpointErrors updates the consecutive error gauge
func (m *Metrics) UpdateEndpointErrors(endpoint string, streak int) {
	m.EndpointErrors.WithLabelValues(endpoint).Set(float64(streak))
}

// RecordVerification records a verification round and the resulting score
func (m *Metrics) RecordVerification(endpoint string, kind VerifyKind, score float64) {
	m.EndpointVerifyTotal.WithLabelValues(endpoint, kind.String()).Inc()
	m.EndpointScore.WithLabelValues(endpoint).Set(score)
}

// UpdateHealthyEndpoints updates the healthy endpoint gauge
func (m *Metrics) UpdateHealthyEndpoints(chainID int64, count int) {
	m.HealthyEndpoints.WithLabelValues(strconv.FormatInt(chainID, 10)).Set(float64(count))
}
