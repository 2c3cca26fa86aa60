package rpcpool

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable 没有节点在超时内给出响应
	ErrUnreachable = errors.New("rpc endpoint unreachable")
	// ErrNoEndpointAvailable is returned before any attempt when the registry is empty.
	ErrNoEndpointAvailable = fmt.Errorf("%w: no endpoint available", ErrUnreachable)
)

// RPCError carries a rejection reported by the node itself. Message is the
// node's text, unmodified.
type RPCError struct {
	Method   string
	Endpoint string
	Attempts int
	Message  string
	// MaybeApplied is set for non-idempotent methods when an earlier attempt
	// timed out, e.g. "nonce too low" after a send whose answer was lost.
	MaybeApplied bool
	Err          error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s failed on %s after %d attempts: %s", e.Method, e.Endpoint, e.Attempts, e.Message)
}

func (e *RPCError) Unwrap() error { return e.Err }

// UnreachableError is returned when the last attempt timed out or hit a
// transport failure. errors.Is(err, ErrUnreachable) holds.
type UnreachableError struct {
	Method   string
	Attempts int
	// MaybeApplied is set for non-idempotent methods when at least one attempt
	// timed out: the node may have executed the request.
	MaybeApplied bool
	Err          error
}

func (e *UnreachableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v after %d attempts", e.Method, ErrUnreachable, e.Attempts)
	}
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Method, ErrUnreachable, e.Attempts, e.Err)
}

func (e *UnreachableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnreachable}
	}
	return []error{ErrUnreachable, e.Err}
}

// IsRPCError reports whether err is a node-side rejection.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// MaybeApplied reports whether a failed non-idempotent call may still have
// been executed by some node.
func MaybeApplied(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.MaybeApplied
	}
	var unreachable *UnreachableError
	if errors.As(err, &unreachable) {
		return unreachable.MaybeApplied
	}
	return false
}
