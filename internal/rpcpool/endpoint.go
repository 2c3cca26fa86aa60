package rpcpool

import (
	"math"
	"sync"
	"time"

	"web3-rpcpool-go/internal/limiter"
)

const (
	// DefaultMaxTimeout is used when an endpoint is configured without a timeout.
	DefaultMaxTimeout = 10 * time.Second

	decayHalfLife    = 60 * time.Second
	maxRetryAfter    = 60 * time.Second
	maxCriticalScore = 400
)

// EndpointParams 单个上游 RPC 节点的静态配置
type EndpointParams struct {
	Name                 string
	URL                  string
	MaxTimeout           time.Duration
	BackupLevel          int
	SkipValidation       bool
	MaxConsecutiveErrors int
	VerifyInterval       time.Duration
	MinInterval          time.Duration
	MaxHeadBehind        time.Duration // 0 disables the head lag check
}

func (p EndpointParams) withDefaults() EndpointParams {
	if p.MaxTimeout <= 0 {
		p.MaxTimeout = DefaultMaxTimeout
	}
	if p.Name == "" {
		p.Name = maskURL(p.URL)
	}
	if p.MaxConsecutiveErrors <= 0 {
		p.MaxConsecutiveErrors = 5
	}
	if p.VerifyInterval <= 0 {
		p.VerifyInterval = 120 * time.Second
	}
	return p
}

// MethodStats per-method request counters
type MethodStats struct {
	Succeeded   uint64    `json:"succeeded"`
	Errors      uint64    `json:"errors"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   time.Time `json:"lastError,omitempty"`
}

// Endpoint is one registry record. Params and transport never change after
// construction; everything below mu is live statistics.
type Endpoint struct {
	index     int
	params    EndpointParams
	transport Transport
	limiter   *limiter.RateLimiter

	mu                sync.Mutex
	total             uint64
	succeeded         uint64
	errors            uint64
	consecutiveErrors int
	lastResult        VerifyResult
	lastSuccess       time.Time
	lastError         time.Time
	lastChosen        time.Time
	retryAfter        time.Time
	methods           map[string]*MethodStats

	// decayed weights, decayAt is the instant they were last brought forward
	decayedSuccess float64
	decayedTotal   float64
	decayAt        time.Time

	// verification state
	lastVerified    time.Time
	verifyResult    VerifyResult
	allowed         bool
	criticalPenalty int
	headBlock       uint64
}

func newEndpoint(index int, params EndpointParams, t Transport) *Endpoint {
	params = params.withDefaults()
	return &Endpoint{
		index:     index,
		params:    params,
		transport: t,
		limiter:   limiter.NewIntervalLimiter(params.MinInterval),
		methods:   make(map[string]*MethodStats),
		allowed:   true,
	}
}

// Index returns the stable registry position.
func (e *Endpoint) Index() int { return e.index }

// Params returns the static configuration.
func (e *Endpoint) Params() EndpointParams { return e.params }

// decayLocked brings the decayed weights forward to now. Caller holds mu.
func (e *Endpoint) decayLocked(now time.Time) {
	if !e.decayAt.IsZero() && now.After(e.decayAt) {
		factor := math.Exp(-math.Ln2 * float64(now.Sub(e.decayAt)) / float64(decayHalfLife))
		e.decayedSuccess *= factor
		e.decayedTotal *= factor
	}
	e.decayAt = now
}

func (e *Endpoint) methodLocked(method string) *MethodStats {
	ms, ok := e.methods[method]
	if !ok {
		ms = &MethodStats{}
		e.methods[method] = ms
	}
	return ms
}

func (e *Endpoint) markChosen(now time.Time) {
	e.mu.Lock()
	e.lastChosen = now
	e.mu.Unlock()
}

// view copies the record into a read-only value for scoring and diagnostics.
func (e *Endpoint) view(now time.Time) EndpointView {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.decayLocked(now)
	methods := make(map[string]MethodStats, len(e.methods))
	for name, ms := range e.methods {
		methods[name] = *ms
	}
	return EndpointView{
		Index:             e.index,
		Params:            e.params,
		Total:             e.total,
		Succeeded:         e.succeeded,
		Errors:            e.errors,
		ConsecutiveErrors: e.consecutiveErrors,
		LastResult:        e.lastResult,
		LastSuccess:       e.lastSuccess,
		LastError:         e.lastError,
		LastChosen:        e.lastChosen,
		RetryAfter:        e.retryAfter,
		DecayedSuccess:    e.decayedSuccess,
		DecayedTotal:      e.decayedTotal,
		LastVerified:      e.lastVerified,
		VerifyResult:      e.verifyResult,
		Allowed:           e.allowed,
		CriticalPenalty:   e.criticalPenalty,
		HeadBlock:         e.headBlock,
		MinInterval:       e.limiter.MinInterval(),
		Methods:           methods,
	}
}

// EndpointView is an immutable copy of one record taken under its lock.
type EndpointView struct {
	Index             int
	Params            EndpointParams
	Total             uint64
	Succeeded         uint64
	Errors            uint64
	ConsecutiveErrors int
	LastResult        VerifyResult
	LastSuccess       time.Time
	LastError         time.Time
	LastChosen        time.Time
	RetryAfter        time.Time
	DecayedSuccess    float64
	DecayedTotal      float64
	LastVerified      time.Time
	VerifyResult      VerifyResult
	Allowed           bool
	CriticalPenalty   int
	HeadBlock         uint64
	MinInterval       time.Duration
	Methods           map[string]MethodStats
}

// Failing reports whether the endpoint is currently flagged as misbehaving.
// The flag always expires: retryAfter is bounded and verification re-runs.
func (v EndpointView) Failing(now time.Time) bool {
	if v.ConsecutiveErrors > 0 && now.Before(v.RetryAfter) {
		return true
	}
	return !v.Allowed && !v.Params.SkipValidation
}

// awaitingRecheck reports whether the retry window after a failure has expired
// and the endpoint has not been chosen since.
func (v EndpointView) awaitingRecheck(now time.Time) bool {
	if v.ConsecutiveErrors == 0 || v.RetryAfter.IsZero() || now.Before(v.RetryAfter) {
		return false
	}
	return v.LastChosen.Before(v.RetryAfter) && !v.Failing(now)
}

// dueForVerification reports whether a background verification should
// (re)check the endpoint.
func (v EndpointView) dueForVerification(now time.Time) bool {
	if v.Params.SkipValidation {
		return false
	}
	return v.LastVerified.IsZero() || now.Sub(v.LastVerified) >= v.Params.VerifyInterval
}

// maskURL 掩码 URL（保护密钥）
func maskURL(url string) string {
	if len(url) > 32 {
		return url[:20] + "..." + url[len(url)-8:]
	}
	return url
}
