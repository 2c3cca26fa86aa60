package rpcpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type accountAtBlock struct {
	Account common.Address
	Block   *big.Int // nil = latest
}

type callAtBlock struct {
	Msg   ethereum.CallMsg
	Block *big.Int
}

// TransactionResult is the answer of eth_getTransactionByHash.
type TransactionResult struct {
	Tx        *types.Transaction
	IsPending bool
}

var (
	ethBalance = Method[accountAtBlock, *big.Int]{
		Name:       "eth_getBalance",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, a accountAtBlock) (*big.Int, error) {
			return t.BalanceAt(ctx, a.Account, a.Block)
		},
	}

	ethBlockByNumber = Method[*big.Int, *types.Block]{
		Name:       "eth_getBlockByNumber",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, number *big.Int) (*types.Block, error) {
			return t.BlockByNumber(ctx, number)
		},
	}

	ethBlockByHash = Method[common.Hash, *types.Block]{
		Name:       "eth_getBlockByHash",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, hash common.Hash) (*types.Block, error) {
			return t.BlockByHash(ctx, hash)
		},
	}

	ethHeaderByNumber = Method[*big.Int, *types.Header]{
		Name:       "eth_getHeaderByNumber",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, number *big.Int) (*types.Header, error) {
			return t.HeaderByNumber(ctx, number)
		},
	}

	ethCall = Method[callAtBlock, []byte]{
		Name:       "eth_call",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, a callAtBlock) ([]byte, error) {
			return t.CallContract(ctx, a.Msg, a.Block)
		},
	}

	ethEstimateGas = Method[ethereum.CallMsg, uint64]{
		Name:       "eth_estimateGas",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, msg ethereum.CallMsg) (uint64, error) {
			return t.EstimateGas(ctx, msg)
		},
	}

	ethSendRawTransaction = Method[[]byte, common.Hash]{
		Name:       "eth_sendRawTransaction",
		Idempotent: false,
		Call: func(ctx context.Context, t Transport, raw []byte) (common.Hash, error) {
			return t.SendRawTransaction(ctx, raw)
		},
	}

	ethTransactionByHash = Method[common.Hash, TransactionResult]{
		Name:       "eth_getTransactionByHash",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, hash common.Hash) (TransactionResult, error) {
			tx, pending, err := t.TransactionByHash(ctx, hash)
			return TransactionResult{Tx: tx, IsPending: pending}, err
		},
	}

	ethTransactionReceipt = Method[common.Hash, *types.Receipt]{
		Name:       "eth_getTransactionReceipt",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, hash common.Hash) (*types.Receipt, error) {
			return t.TransactionReceipt(ctx, hash)
		},
	}

	ethLogs = Method[ethereum.FilterQuery, []types.Log]{
		Name:       "eth_getLogs",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, q ethereum.FilterQuery) ([]types.Log, error) {
			return t.FilterLogs(ctx, q)
		},
	}

	ethBlockNumber = Method[struct{}, uint64]{
		Name:       "eth_blockNumber",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, _ struct{}) (uint64, error) {
			return t.BlockNumber(ctx)
		},
	}

	ethTransactionCount = Method[accountAtBlock, uint64]{
		Name:       "eth_getTransactionCount",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, a accountAtBlock) (uint64, error) {
			return t.NonceAt(ctx, a.Account, a.Block)
		},
	}

	ethPendingTransactionCount = Method[common.Address, uint64]{
		Name:       "eth_getTransactionCount_pending",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, account common.Address) (uint64, error) {
			return t.PendingNonceAt(ctx, account)
		},
	}

	ethChainID = Method[struct{}, *big.Int]{
		Name:       "eth_chainId",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, _ struct{}) (*big.Int, error) {
			return t.ChainID(ctx)
		},
	}

	ethGasPrice = Method[struct{}, *big.Int]{
		Name:       "eth_gasPrice",
		Idempotent: true,
		Call: func(ctx context.Context, t Transport, _ struct{}) (*big.Int, error) {
			return t.SuggestGasPrice(ctx)
		},
	}
)

// MethodNames lists every descriptor name, used to pre-register metric series.
var MethodNames = []string{
	ethBalance.Name,
	ethBlockByNumber.Name,
	ethBlockByHash.Name,
	ethHeaderByNumber.Name,
	ethCall.Name,
	ethEstimateGas.Name,
	ethSendRawTransaction.Name,
	ethTransactionByHash.Name,
	ethTransactionReceipt.Name,
	ethLogs.Name,
	ethBlockNumber.Name,
	ethTransactionCount.Name,
	ethPendingTransactionCount.Name,
	ethChainID.Name,
	ethGasPrice.Name,
}
