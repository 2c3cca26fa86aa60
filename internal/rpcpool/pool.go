package rpcpool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"web3-rpcpool-go/internal/limiter"
	"web3-rpcpool-go/internal/monitor"
)

// Pool is a single logical client over a fixed set of upstream endpoints.
type Pool struct {
	chainID      int64
	registry     *Registry
	selector     selector
	dialer       Dialer
	maxAttempts  int
	retryBackoff time.Duration
	autoVerify   bool
	limiter      *limiter.RateLimiter // pool-wide cap, nil means unlimited

	metrics *Metrics
	quota   *monitor.QuotaMonitor
	rate    *monitor.RequestRateMonitor

	verifying chan struct{} // one verification round at a time

	// background work started by the pool itself ends with Close
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Pool.
type Option func(*Pool)

// WithDialer replaces the ethclient dialer (tests, custom transports).
func WithDialer(d Dialer) Option {
	return func(p *Pool) { p.dialer = d }
}

// WithMaxAttempts sets the retry ceiling.
func WithMaxAttempts(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the pause between attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Pool) {
		if d >= 0 {
			p.retryBackoff = d
		}
	}
}

// WithAutoVerify controls whether endpoint selection starts a background
// verification round when an endpoint is due. Enabled by default.
func WithAutoVerify(enabled bool) Option {
	return func(p *Pool) { p.autoVerify = enabled }
}

// WithMaxRPS caps requests per second across all endpoints. 0 disables the cap.
func WithMaxRPS(rps float64) Option {
	return func(p *Pool) { p.limiter = limiter.NewRateLimiter(rps) }
}

// WithDailyQuota enables request budget warnings. 0 disables the budget.
func WithDailyQuota(limit uint64) Option {
	return func(p *Pool) { p.quota = monitor.NewQuotaMonitor(strconv.FormatInt(p.chainID, 10), limit) }
}

// New builds a pool for chainID. Endpoints that fail to dial are skipped with a
// warning, mirroring how the pool treats unreachable nodes at runtime.
func New(ctx context.Context, chainID int64, endpoints []EndpointParams, opts ...Option) (*Pool, error) {
	p := &Pool{
		chainID:      chainID,
		registry:     NewRegistry(),
		dialer:       DialEth,
		maxAttempts:  DefaultMaxAttempts,
		retryBackoff: DefaultRetryBackoff,
		autoVerify:   true,
		metrics:      GetMetrics(),
		rate:         monitor.NewRequestRateMonitor(),
		verifying:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	if p.quota == nil {
		p.quota = monitor.NewQuotaMonitor(strconv.FormatInt(chainID, 10), 0)
	}

	for _, params := range endpoints {
		if _, err := p.AddEndpoint(ctx, params); err != nil {
			Logger.Warn("rpc_endpoint_dial_failed",
				"endpoint", maskURL(params.URL),
				"error", err.Error(),
			)
		}
	}

	if len(endpoints) > 0 && p.registry.Len() == 0 {
		p.cancel()
		return nil, fmt.Errorf("none of %d endpoints could be dialed", len(endpoints))
	}

	Logger.Info("rpc_pool_initialized",
		"chain_id", chainID,
		"endpoints", p.registry.Len(),
		"max_attempts", p.maxAttempts,
		"auto_verify", p.autoVerify,
	)
	return p, nil
}

// NewFromURLs builds a pool with default parameters for each URL.
func NewFromURLs(ctx context.Context, chainID int64, urls []string, opts ...Option) (*Pool, error) {
	params := make([]EndpointParams, 0, len(urls))
	for _, u := range urls {
		params = append(params, EndpointParams{
			URL:           u,
			MaxTimeout:    5 * time.Second,
			MaxHeadBehind: 120 * time.Second,
		})
	}
	return New(ctx, chainID, params, opts...)
}

// AddEndpoint dials and registers one more endpoint. Adding a URL that is
// already registered is a no-op returning the existing index.
func (p *Pool) AddEndpoint(ctx context.Context, params EndpointParams) (int, error) {
	if params.URL == "" {
		return 0, fmt.Errorf("endpoint %q has no url", params.Name)
	}
	t, err := p.dialer(ctx, params.URL)
	if err != nil {
		return 0, err
	}
	idx, added := p.registry.Add(params, t)
	if !added {
		t.Close()
		Logger.Debug("rpc_endpoint_duplicate", "endpoint", maskURL(params.URL), "index", idx)
		return idx, nil
	}
	e, _ := p.registry.Get(idx)
	p.metrics.InitEndpoint(e.params.Name, MethodNames)
	Logger.Debug("rpc_endpoint_added", "endpoint", e.params.Name, "index", idx)
	return idx, nil
}

// Registry exposes the endpoint registry for diagnostics.
func (p *Pool) Registry() *Registry { return p.registry }

// GetHealthyNodeCount returns the number of endpoints not currently failing.
func (p *Pool) GetHealthyNodeCount() int {
	now := time.Now()
	count := 0
	for _, v := range p.registry.Snapshot() {
		if !v.Failing(now) {
			count++
		}
	}
	return count
}

// GetTotalNodeCount returns the number of registered endpoints.
func (p *Pool) GetTotalNodeCount() int {
	return p.registry.Len()
}

// RunQuotaReset resets the daily request counter at every UTC midnight until ctx is done.
func (p *Pool) RunQuotaReset(ctx context.Context) {
	p.quota.Run(ctx)
}

// Close stops background verification and closes all transports.
func (p *Pool) Close() {
	p.cancel()
	for _, e := range p.registry.all() {
		if e.transport != nil {
			e.transport.Close()
		}
	}
	Logger.Info("rpc_pool_closed", "chain_id", p.chainID)
}
