package rpcpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RPCClient 定义RPC客户端接口，用于测试和生产代码
type RPCClient interface {
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	GetLatestBlockNumber(ctx context.Context) (*big.Int, error)
	GetHealthyNodeCount() int
	GetTotalNodeCount() int
	Close()
}

// 确保Pool实现了RPCClient接口
var _ RPCClient = (*Pool)(nil)

// Balance returns the wei balance of account at block (nil = latest).
func (p *Pool) Balance(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	return Execute(ctx, p, ethBalance, accountAtBlock{Account: account, Block: block})
}

// BlockByNumber returns a full block (nil = latest).
func (p *Pool) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return Execute(ctx, p, ethBlockByNumber, number)
}

// BlockByHash returns a full block by hash.
func (p *Pool) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return Execute(ctx, p, ethBlockByHash, hash)
}

// HeaderByNumber returns a block header (nil = latest).
func (p *Pool) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return Execute(ctx, p, ethHeaderByNumber, number)
}

// Call executes a message call without creating a transaction.
func (p *Pool) Call(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return Execute(ctx, p, ethCall, callAtBlock{Msg: msg, Block: block})
}

func (p *Pool) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return Execute(ctx, p, ethEstimateGas, msg)
}

// SendRawTransaction broadcasts a signed transaction. A timed-out attempt may
// still have reached the node; check UnreachableError.MaybeApplied before
// resubmitting.
func (p *Pool) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	return Execute(ctx, p, ethSendRawTransaction, raw)
}

// TransactionByHash returns ethereum.NotFound when no node knows the hash.
func (p *Pool) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	res, err := Execute(ctx, p, ethTransactionByHash, hash)
	return res.Tx, res.IsPending, err
}

func (p *Pool) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return Execute(ctx, p, ethTransactionReceipt, hash)
}

func (p *Pool) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return Execute(ctx, p, ethLogs, q)
}

func (p *Pool) BlockNumber(ctx context.Context) (uint64, error) {
	return Execute(ctx, p, ethBlockNumber, struct{}{})
}

// GetLatestBlockNumber 获取链上最新块高
func (p *Pool) GetLatestBlockNumber(ctx context.Context) (*big.Int, error) {
	n, err := p.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(n), nil
}

// TransactionCount returns the nonce of account at block (nil = latest).
func (p *Pool) TransactionCount(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return Execute(ctx, p, ethTransactionCount, accountAtBlock{Account: account, Block: block})
}

func (p *Pool) PendingTransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	return Execute(ctx, p, ethPendingTransactionCount, account)
}

// ChainID asks the upstream nodes for their chain id.
func (p *Pool) ChainID(ctx context.Context) (*big.Int, error) {
	return Execute(ctx, p, ethChainID, struct{}{})
}

func (p *Pool) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return Execute(ctx, p, ethGasPrice, struct{}{})
}

// balanceOf(address) selector
var erc20BalanceOf = common.FromHex("0x70a08231")

// TokenBalance returns holder's balance of an ERC20 token via eth_call.
func (p *Pool) TokenBalance(ctx context.Context, token, holder common.Address, block *big.Int) (*big.Int, error) {
	data := append(append([]byte{}, erc20BalanceOf...), common.LeftPadBytes(holder.Bytes(), 32)...)
	out, err := p.Call(ctx, ethereum.CallMsg{To: &token, Data: data}, block)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("balanceOf on %s returned %d bytes", token.Hex(), len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}
