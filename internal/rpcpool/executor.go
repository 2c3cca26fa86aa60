package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts 每次逻辑调用的最大尝试次数（首次 + 3 次重试）
	DefaultMaxAttempts = 4
	// DefaultRetryBackoff pause between attempts
	DefaultRetryBackoff = 10 * time.Millisecond
)

type attemptResult[R any] struct {
	val R
	err error
}

// Execute runs one logical call: select an endpoint, call it under its own
// timeout, record the outcome and retry on a freshly selected endpoint until
// the attempt ceiling is reached.
func Execute[A, R any](ctx context.Context, p *Pool, m Method[A, R], args A) (R, error) {
	var zero R
	var last outcome
	lastEndpoint := ""
	maybeApplied := false

	for attempt := 1; ; attempt++ {
		idx, ok := p.ChooseBestEndpoint()
		if !ok {
			return zero, ErrNoEndpointAvailable
		}
		e, ok := p.registry.Get(idx)
		if !ok {
			return zero, ErrNoEndpointAvailable
		}

		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, fmt.Errorf("%s: pool rate limit: %w", m.Name, err)
		}
		if err := e.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			// the endpoint's spacing would outlast the caller deadline:
			// spend the attempt on another endpoint without penalising this one
			Logger.Debug("rpc_endpoint_throttled", "endpoint", e.params.Name, "method", m.Name)
			if last.err == nil {
				last = outcome{result: unreachableResult("endpoint throttled"), err: err}
				lastEndpoint = e.params.Name
			}
			if attempt >= p.maxAttempts {
				return zero, finalError(m.Name, lastEndpoint, attempt, last, maybeApplied)
			}
			continue
		}

		p.quota.Inc()
		p.rate.Record(1)
		start := time.Now()
		val, err := callWithTimeout(ctx, e, m, args)
		o := classify(ctx, err)
		if o.aborted {
			return zero, o.err
		}
		p.record(idx, m.Name, o, time.Since(start))

		if o.result.OK() {
			// ethereum.NotFound is a valid answer and is passed through as is
			return val, err
		}

		last = o
		lastEndpoint = e.params.Name
		if o.result.Kind == VerifyUnreachable && !m.Idempotent {
			maybeApplied = true
		}

		if attempt >= p.maxAttempts {
			return zero, finalError(m.Name, lastEndpoint, attempt, last, maybeApplied)
		}

		if maybeApplied {
			Logger.Warn("rpc_non_idempotent_retry",
				"method", m.Name,
				"attempt", attempt,
				"endpoint", lastEndpoint,
				"reason", "previous attempt outcome unknown",
			)
		}
		LogRPCRetry(m.Name, attempt, last.err)
		p.metrics.RecordRPCRetry(m.Name)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.retryBackoff):
		}
	}
}

// callWithTimeout races the descriptor call against the endpoint timeout. The
// call keeps running in its goroutine if the transport ignores cancellation;
// its result is then dropped.
func callWithTimeout[A, R any](ctx context.Context, e *Endpoint, m Method[A, R], args A) (R, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.params.MaxTimeout)
	defer cancel()

	ch := make(chan attemptResult[R], 1)
	go func() {
		v, err := m.Call(attemptCtx, e.transport, args)
		ch <- attemptResult[R]{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-attemptCtx.Done():
		var zero R
		return zero, attemptCtx.Err()
	}
}

func finalError(method, endpoint string, attempts int, last outcome, maybeApplied bool) error {
	if last.result.Kind == VerifyRPCError {
		return &RPCError{
			Method:   method,
			Endpoint: endpoint,
			Attempts: attempts,
			Message:  last.result.Message,
			// an earlier attempt may have reached a node even though the last one was rejected
			MaybeApplied: maybeApplied,
			Err:          last.err,
		}
	}
	cause := last.err
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = errors.New("timeout")
	}
	return &UnreachableError{
		Method:       method,
		Attempts:     attempts,
		MaybeApplied: maybeApplied,
		Err:          cause,
	}
}
