package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	AlertThreshold    = 0.80 // 80% 预警阈值
	CriticalThreshold = 0.90 // 90% 临界阈值
)

// Quota status values exported through rpcpool_quota_status.
const (
	QuotaSafe = iota
	QuotaWarning
	QuotaCritical
)

var (
	quotaGaugesOnce sync.Once
	usageGauge      *prometheus.GaugeVec
	statusGauge     *prometheus.GaugeVec
	callsGauge      *prometheus.GaugeVec
)

func quotaGauges() {
	quotaGaugesOnce.Do(func() {
		usageGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_quota_usage_percent",
			Help: "Percentage of daily RPC quota used (0-100)",
		}, []string{"pool"})
		statusGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_quota_status",
			Help: "RPC quota status: 0=Safe, 1=Warning, 2=Critical",
		}, []string{"pool"})
		callsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcpool_quota_calls_today",
			Help: "RPC attempts sent since the last UTC midnight",
		}, []string{"pool"})
	})
}

// QuotaMonitor RPC 额度监控器
// 按 UTC 自然日统计请求次数，dailyQuota 为 0 时只计数不告警
type QuotaMonitor struct {
	label      string
	dailyQuota uint64
	dailyCalls atomic.Uint64 // 当天 RPC 调用次数
}

// NewQuotaMonitor 创建新的额度监控器
func NewQuotaMonitor(label string, dailyQuota uint64) *QuotaMonitor {
	quotaGauges()
	qm := &QuotaMonitor{label: label, dailyQuota: dailyQuota}
	qm.publish(0)

	if dailyQuota > 0 {
		slog.Info("🛡️ Quota monitor initialized",
			"pool", label,
			"daily_quota", dailyQuota,
			"alert_threshold", AlertThreshold*100,
			"critical_threshold", CriticalThreshold*100)
	}
	return qm
}

// Inc 每次发出 RPC 请求前调用此方法
func (m *QuotaMonitor) Inc() {
	current := m.dailyCalls.Add(1)
	m.publish(current)

	if m.dailyQuota == 0 {
		return
	}
	usage := float64(current) / float64(m.dailyQuota)
	// 阈值检查（每 100 次检查一次，避免日志刷屏）
	if current%100 != 0 {
		return
	}
	if usage >= CriticalThreshold {
		slog.Error("🛑 CRITICAL: RPC quota nearly exhausted!",
			"pool", m.label,
			"usage_percent", usage*100,
			"calls", current,
			"daily_quota", m.dailyQuota)
	} else if usage >= AlertThreshold {
		slog.Warn("⚠️  QUOTA WARNING: RPC usage exceeds threshold",
			"pool", m.label,
			"usage_percent", usage*100,
			"calls", current,
			"remaining", m.remaining(current))
	}
}

func (m *QuotaMonitor) remaining(current uint64) uint64 {
	if current >= m.dailyQuota {
		return 0
	}
	return m.dailyQuota - current
}

func (m *QuotaMonitor) publish(current uint64) {
	callsGauge.WithLabelValues(m.label).Set(float64(current))
	usageGauge.WithLabelValues(m.label).Set(m.percent(current))
	statusGauge.WithLabelValues(m.label).Set(float64(m.status(current)))
}

func (m *QuotaMonitor) percent(current uint64) float64 {
	if m.dailyQuota == 0 {
		return 0
	}
	return float64(current) / float64(m.dailyQuota) * 100
}

func (m *QuotaMonitor) status(current uint64) int {
	if m.dailyQuota == 0 {
		return QuotaSafe
	}
	p := float64(current) / float64(m.dailyQuota)
	switch {
	case p >= CriticalThreshold:
		return QuotaCritical
	case p >= AlertThreshold:
		return QuotaWarning
	default:
		return QuotaSafe
	}
}

// Used returns the number of calls counted today.
func (m *QuotaMonitor) Used() uint64 {
	return m.dailyCalls.Load()
}

// GetUsagePercent 返回当前使用率（0-100），未设置额度时为 0
func (m *QuotaMonitor) GetUsagePercent() float64 {
	return m.percent(m.dailyCalls.Load())
}

// Status returns QuotaSafe, QuotaWarning or QuotaCritical.
func (m *QuotaMonitor) Status() int {
	return m.status(m.dailyCalls.Load())
}

// NextReset 计算下一个 UTC 0 点
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Run resets the counter at every UTC midnight until ctx is done.
func (m *QuotaMonitor) Run(ctx context.Context) {
	for {
		next := NextReset(time.Now())
		slog.Debug("⏰ Quota monitor reset timer scheduled",
			"pool", m.label,
			"next_reset", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			m.ResetDaily()
		}
	}
}

// ResetDaily 重置每日计数器
func (m *QuotaMonitor) ResetDaily() {
	m.dailyCalls.Store(0)
	m.publish(0)
	slog.Info("📅 Daily RPC quota counter reset",
		"pool", m.label,
		"time_utc", time.Now().UTC().Format(time.RFC3339))
}
