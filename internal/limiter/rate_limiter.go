package limiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBurstSize 每个节点允许 1 个突发请求
const DefaultBurstSize = 1

// RateLimiter 单节点请求间隔限制器
type RateLimiter struct {
	limiter     *rate.Limiter
	minInterval time.Duration
}

// NewIntervalLimiter returns a limiter that spaces requests at least
// minInterval apart. A non-positive interval means unlimited and yields nil;
// the nil limiter is valid and never blocks.
func NewIntervalLimiter(minInterval time.Duration) *RateLimiter {
	if minInterval <= 0 {
		return nil
	}
	slog.Debug("⏱️ Interval limiter configured", "min_interval", minInterval.String())
	return &RateLimiter{
		limiter:     rate.NewLimiter(rate.Every(minInterval), DefaultBurstSize),
		minInterval: minInterval,
	}
}

// NewRateLimiter 按每秒请求数创建限流器，rps <= 0 表示不限流
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return NewIntervalLimiter(time.Duration(float64(time.Second) / rps))
}

// Wait 阻塞直到获取令牌（或上下文取消）
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}

// MinInterval 返回配置的最小请求间隔（用于监控）
func (rl *RateLimiter) MinInterval() time.Duration {
	if rl == nil {
		return 0
	}
	return rl.minInterval
}
