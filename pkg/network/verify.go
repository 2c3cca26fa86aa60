package network

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// 预定义的网络 ID（常量）
const (
	MainnetChainID = 1
	SepoliaChainID = 11155111
	AnvilChainID   = 31337
	GoerliChainID  = 5
	HoleskyChainID = 17000
	PolygonChainID = 137
	AmoyChainID    = 80002
)

// ErrChainIDMismatch is returned when a node serves a different chain.
var ErrChainIDMismatch = errors.New("chain id mismatch")

// ChainIDReader is satisfied by ethclient and by the pool transports.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Name 返回 Chain ID 对应的网络名称
func Name(chainID int64) string {
	switch chainID {
	case MainnetChainID:
		return "Ethereum Mainnet"
	case SepoliaChainID:
		return "Sepolia Testnet"
	case AnvilChainID:
		return "Anvil Local"
	case GoerliChainID:
		return "Goerli Testnet"
	case HoleskyChainID:
		return "Holesky Testnet"
	case PolygonChainID:
		return "Polygon Mainnet"
	case AmoyChainID:
		return "Polygon Amoy"
	default:
		return fmt.Sprintf("Unknown Network (Chain ID: %d)", chainID)
	}
}

// VerifyChainID 校验节点的 Chain ID 与预期一致
// Query failures are returned as is so callers can classify them; a mismatch
// wraps ErrChainIDMismatch.
func VerifyChainID(ctx context.Context, r ChainIDReader, expected int64) (*big.Int, error) {
	actual, err := r.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if actual == nil || actual.Cmp(big.NewInt(expected)) != 0 {
		return actual, fmt.Errorf("%w: expected %s, got %v", ErrChainIDMismatch, Name(expected), actual)
	}
	return actual, nil
}
