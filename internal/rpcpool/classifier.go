package rpcpool

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
)

// outcome is the classification of one attempt.
type outcome struct {
	result  VerifyResult
	aborted bool // caller cancelled; nothing is recorded
	err     error
}

// classify maps a raw call error to a verification result. parent is the
// caller's context, used to tell caller cancellation apart from the attempt timeout.
func classify(parent context.Context, err error) outcome {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return outcome{result: success(), err: err}
	}
	if parent.Err() != nil {
		return outcome{aborted: true, err: parent.Err()}
	}
	if isTransportFailure(err) {
		return outcome{result: unreachableResult(err.Error()), err: err}
	}
	return outcome{result: rpcErrorResult(rpcMessage(err)), err: err}
}

func isTransportFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// rpcMessage prefers the JSON-RPC error text over wrapped descriptions.
func rpcMessage(err error) string {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Error()
	}
	return err.Error()
}

// record applies one attempt outcome to the endpoint at index.
func (p *Pool) record(index int, method string, o outcome, latency time.Duration) {
	e, ok := p.registry.Get(index)
	if !ok {
		Logger.Error("rpc_record_unknown_endpoint", "index", index, "method", method)
		return
	}
	now := time.Now()

	e.mu.Lock()
	e.decayLocked(now)
	e.total++
	e.decayedTotal++
	ms := e.methodLocked(method)
	wasFailing := e.consecutiveErrors > 0
	if o.result.OK() {
		e.succeeded++
		e.decayedSuccess++
		e.consecutiveErrors = 0
		e.retryAfter = time.Time{}
		e.lastSuccess = now
		e.lastResult = o.result
		ms.Succeeded++
		ms.LastSuccess = now
	} else {
		e.errors++
		e.consecutiveErrors++
		e.lastError = now
		e.lastResult = o.result
		backoff := time.Duration(math.Min(math.Pow(2, float64(e.consecutiveErrors-1)), maxRetryAfter.Seconds())) * time.Second
		e.retryAfter = now.Add(backoff)
		ms.Errors++
		ms.LastError = now
	}
	streak := e.consecutiveErrors
	maxStreak := e.params.MaxConsecutiveErrors
	e.mu.Unlock()

	name := e.params.Name
	p.metrics.RecordRPCAttempt(name, method, o.result.Kind, latency)
	p.metrics.UpdateEndpointErrors(name, streak)

	switch {
	case o.result.OK() && wasFailing:
		LogEndpointRecovered(name, method)
	case !o.result.OK():
		LogRPCAttemptFailed(name, method, o.result, streak)
		if streak == maxStreak+1 {
			Logger.Warn("🚨 RPC_ENDPOINT_DEGRADED",
				"endpoint", name,
				"consecutive_errors", streak,
			)
		}
	}
}
