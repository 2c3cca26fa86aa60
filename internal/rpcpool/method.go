package rpcpool

import "context"

// Method binds one RPC method: its wire name, argument and return types, and
// the call issued against a single endpoint. Descriptors hold no state and are
// shared by all concurrent calls.
type Method[A, R any] struct {
	Name string
	// Idempotent is false for methods whose repeat may have side effects
	// (broadcasting a transaction).
	Idempotent bool
	Call       func(ctx context.Context, t Transport, args A) (R, error)
}
