package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3-rpcpool-go/internal/config"
)

func TestRunRejectsBadUsage(t *testing.T) {
	cfg := &config.Config{RPCURLs: []string{"http://127.0.0.1:1"}, ChainID: 1}
	var out bytes.Buffer

	for _, args := range [][]string{
		nil,
		{"balance"},
		{"token-balance", "USDC"},
		{"check", "extra"},
	} {
		assert.ErrorIs(t, run(context.Background(), cfg, args, &out), errUsage, "args %v", args)
	}

	err := run(context.Background(), cfg, []string{"frobnicate"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
	assert.Empty(t, out.String())
}

func TestRunValidatesConfigBeforeDialing(t *testing.T) {
	cfg := &config.Config{ChainID: 1}
	err := run(context.Background(), cfg, []string{"block-number"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_URLS")
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	require.NoError(t, err)
	assert.Equal(t, "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", addr.Hex())

	_, err = parseAddress("not-an-address")
	assert.Error(t, err)
}

func TestBenchArgs(t *testing.T) {
	calls, workers, err := benchArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultBenchCalls, calls)
	assert.Equal(t, defaultBenchWorkers, workers)

	calls, workers, err = benchArgs([]string{"500", "16"})
	require.NoError(t, err)
	assert.Equal(t, 500, calls)
	assert.Equal(t, 16, workers)

	_, _, err = benchArgs([]string{"-1"})
	assert.Error(t, err)
	_, _, err = benchArgs([]string{"10", "zero"})
	assert.Error(t, err)
}

type ethStub struct{}

func (ethStub) BlockNumber() hexutil.Uint64 { return 4242 }

func (ethStub) GetBalance(_ common.Address, _ string) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1e18))
}

func stubConfig(t *testing.T) *config.Config {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", ethStub{}))
	hs := httptest.NewServer(server)
	t.Cleanup(func() {
		hs.Close()
		server.Stop()
	})
	return &config.Config{
		RPCURLs:         []string{hs.URL},
		ChainID:         1,
		RPCMaxTimeout:   time.Second,
		RPCMaxAttempts:  2,
		RPCRetryBackoff: time.Millisecond,
		// the stub serves neither eth_chainId nor headers
		RPCSkipValidation: true,
	}
}

func TestRunBlockNumberAndBalance(t *testing.T) {
	cfg := stubConfig(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, []string{"block-number"}, &out))
	assert.Equal(t, "4242", strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, run(context.Background(), cfg, []string{"balance", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"}, &out))
	assert.Equal(t, "1000000000000000000", strings.TrimSpace(out.String()))

	assert.Error(t, run(context.Background(), cfg, []string{"balance", "nope"}, &out))
}

func TestRunBench(t *testing.T) {
	cfg := stubConfig(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, []string{"bench", "20", "4"}, &out))

	var report benchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, int64(20), report.Calls)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Endpoints, 1)
	assert.Equal(t, uint64(20), report.Endpoints[0].Succeeded)
}
