package rpcpool

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransport 模拟单个节点
type MockTransport struct {
	mock.Mock
	closed atomic.Bool
}

func bigOrNil(v interface{}) *big.Int {
	b, _ := v.(*big.Int)
	return b
}

func (m *MockTransport) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	return bigOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransport) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	args := m.Called(ctx, number)
	b, _ := args.Get(0).(*types.Block)
	return b, args.Error(1)
}

func (m *MockTransport) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	args := m.Called(ctx, hash)
	b, _ := args.Get(0).(*types.Block)
	return b, args.Error(1)
}

func (m *MockTransport) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	h, _ := args.Get(0).(*types.Header)
	return h, args.Error(1)
}

func (m *MockTransport) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockTransport) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockTransport) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockTransport) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	args := m.Called(ctx, hash)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Bool(1), args.Error(2)
}

func (m *MockTransport) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	r, _ := args.Get(0).(*types.Receipt)
	return r, args.Error(1)
}

func (m *MockTransport) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args := m.Called(ctx, q)
	logs, _ := args.Get(0).([]types.Log)
	return logs, args.Error(1)
}

func (m *MockTransport) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockTransport) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	args := m.Called(ctx, account, blockNumber)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockTransport) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockTransport) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return bigOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransport) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return bigOrNil(args.Get(0)), args.Error(1)
}

func (m *MockTransport) Close() { m.closed.Store(true) }

// blockUntilDone makes a mocked call hang until its context ends, like a node
// that never answers. Pair it with Return(..., ctx error) as ethclient does.
func blockUntilDone(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

// jsonRPCError mimics an error object returned by a node.
type jsonRPCError struct {
	code int
	msg  string
}

func (e *jsonRPCError) Error() string  { return e.msg }
func (e *jsonRPCError) ErrorCode() int { return e.code }

type testEndpoint struct {
	params    EndpointParams
	transport *MockTransport
}

func endpoint(name string, level int, timeout time.Duration) testEndpoint {
	return testEndpoint{
		params: EndpointParams{
			Name:        name,
			URL:         fmt.Sprintf("https://%s.rpc.example", name),
			MaxTimeout:  timeout,
			BackupLevel: level,
		},
		transport: new(MockTransport),
	}
}

// newTestPool builds a pool whose dialer hands out the given mocks.
func newTestPool(t *testing.T, chainID int64, eps []testEndpoint, opts ...Option) *Pool {
	t.Helper()
	byURL := make(map[string]Transport, len(eps))
	params := make([]EndpointParams, 0, len(eps))
	for _, ep := range eps {
		byURL[ep.params.URL] = ep.transport
		params = append(params, ep.params)
	}
	dialer := func(_ context.Context, url string) (Transport, error) {
		tr, ok := byURL[url]
		if !ok {
			return nil, fmt.Errorf("no transport for %s", url)
		}
		return tr, nil
	}
	opts = append([]Option{WithDialer(dialer), WithRetryBackoff(time.Millisecond), WithAutoVerify(false)}, opts...)
	p, err := New(context.Background(), chainID, params, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func viewOf(t *testing.T, p *Pool, index int) EndpointView {
	t.Helper()
	e, ok := p.Registry().Get(index)
	require.True(t, ok)
	return e.view(time.Now())
}
