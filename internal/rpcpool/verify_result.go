package rpcpool

import (
	"encoding/json"
	"fmt"
	"time"
)

// VerifyKind classifies a call attempt or a verification round.
type VerifyKind int

const (
	NotVerified VerifyKind = iota
	VerifySuccess
	VerifyRPCError
	VerifyUnreachable
	// kinds below are only produced by the endpoint verifier
	VerifyWrongChainID
	VerifyNoBlockInfo
	VerifyHeadBehind
)

// String 实现 Stringer 接口
func (k VerifyKind) String() string {
	switch k {
	case NotVerified:
		return "not_verified"
	case VerifySuccess:
		return "success"
	case VerifyRPCError:
		return "rpc_error"
	case VerifyUnreachable:
		return "unreachable"
	case VerifyWrongChainID:
		return "wrong_chain_id"
	case VerifyNoBlockInfo:
		return "no_block_info"
	case VerifyHeadBehind:
		return "head_behind"
	default:
		return "unknown"
	}
}

// VerifyResult is the outcome stored on an endpoint record.
type VerifyResult struct {
	Kind    VerifyKind
	Message string

	// set by the verifier on success
	HeadSecondsBehind int64
	CheckTime         time.Duration
}

// OK reports a successful result.
func (r VerifyResult) OK() bool { return r.Kind == VerifySuccess }

func (r VerifyResult) String() string {
	if r.Message == "" {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Message)
}

// MarshalJSON renders the result as {"kind": ..., "message": ...}.
func (r VerifyResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind              string `json:"kind"`
		Message           string `json:"message,omitempty"`
		HeadSecondsBehind int64  `json:"headSecondsBehind,omitempty"`
		CheckTimeMs       int64  `json:"checkTimeMs,omitempty"`
	}{
		Kind:              r.Kind.String(),
		Message:           r.Message,
		HeadSecondsBehind: r.HeadSecondsBehind,
		CheckTimeMs:       r.CheckTime.Milliseconds(),
	}
	return json.Marshal(out)
}

// ParseVerifyKind is the inverse of VerifyKind.String.
func ParseVerifyKind(s string) (VerifyKind, bool) {
	for k := NotVerified; k <= VerifyHeadBehind; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return NotVerified, false
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (r *VerifyResult) UnmarshalJSON(data []byte) error {
	var in struct {
		Kind              string `json:"kind"`
		Message           string `json:"message"`
		HeadSecondsBehind int64  `json:"headSecondsBehind"`
		CheckTimeMs       int64  `json:"checkTimeMs"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, ok := ParseVerifyKind(in.Kind)
	if !ok {
		return fmt.Errorf("unknown verify result kind %q", in.Kind)
	}
	*r = VerifyResult{
		Kind:              kind,
		Message:           in.Message,
		HeadSecondsBehind: in.HeadSecondsBehind,
		CheckTime:         time.Duration(in.CheckTimeMs) * time.Millisecond,
	}
	return nil
}

func success() VerifyResult { return VerifyResult{Kind: VerifySuccess} }

func rpcErrorResult(msg string) VerifyResult {
	return VerifyResult{Kind: VerifyRPCError, Message: msg}
}

func unreachableResult(msg string) VerifyResult {
	return VerifyResult{Kind: VerifyUnreachable, Message: msg}
}
