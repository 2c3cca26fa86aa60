package rpcpool

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEthService answers a handful of eth_ methods over real JSON-RPC.
type fakeEthService struct{}

func (fakeEthService) BlockNumber() hexutil.Uint64 { return 100 }

func (fakeEthService) ChainId() *hexutil.Big { return (*hexutil.Big)(common.Big1) }

func (fakeEthService) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	return common.Hash{}, &jsonRPCError{code: -32000, msg: "nonce too low"}
}

func newRPCServer(t *testing.T) string {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", fakeEthService{}))
	hs := httptest.NewServer(server)
	t.Cleanup(func() {
		hs.Close()
		server.Stop()
	})
	return hs.URL
}

func TestPoolOverRealJSONRPC(t *testing.T) {
	url := newRPCServer(t)
	p, err := NewFromURLs(context.Background(), 1, []string{url}, WithRetryBackoff(time.Millisecond), WithMaxAttempts(2), WithAutoVerify(false))
	require.NoError(t, err)
	defer p.Close()

	n, err := p.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)

	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	_, err = p.SendRawTransaction(context.Background(), []byte{0x01, 0x02})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "nonce too low", rpcErr.Message)
	assert.Equal(t, 2, rpcErr.Attempts)
}

func TestPoolOverUnreachableURL(t *testing.T) {
	url := newRPCServer(t)
	p, err := New(context.Background(), 1, []EndpointParams{
		{Name: "dead", URL: "http://127.0.0.1:1", MaxTimeout: time.Second},
		{Name: "live", URL: url, BackupLevel: 1, MaxTimeout: time.Second},
	}, WithRetryBackoff(time.Millisecond), WithAutoVerify(false))
	require.NoError(t, err)
	defer p.Close()

	n, err := p.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)
	assert.Equal(t, VerifyUnreachable, viewOf(t, p, 0).LastResult.Kind)
}
