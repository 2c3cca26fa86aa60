package rpcpool

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func headerAgo(number int64, age time.Duration) *types.Header {
	return &types.Header{Number: big.NewInt(number), Time: uint64(time.Now().Add(-age).Unix())}
}

func TestVerifyEndpoint_Success(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.params.MaxHeadBehind = time.Minute
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(19_000_000, 5*time.Second), nil)

	p := newTestPool(t, 1, []testEndpoint{a})

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, r.Kind)
	assert.InDelta(t, 5, r.HeadSecondsBehind, 2)

	v := viewOf(t, p, 0)
	assert.True(t, v.Allowed)
	assert.Equal(t, uint64(19_000_000), v.HeadBlock)
	assert.False(t, v.LastVerified.IsZero())
}

func TestVerifyEndpoint_WrongChainIDFlagsButKeepsEndpoint(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(5), nil)

	p := newTestPool(t, 1, []testEndpoint{a})

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, VerifyWrongChainID, r.Kind)

	v := viewOf(t, p, 0)
	assert.False(t, v.Allowed)
	assert.Equal(t, 100, v.CriticalPenalty)
	assert.True(t, v.Failing(time.Now()))
	assert.Equal(t, 0, p.GetHealthyNodeCount())

	idx, ok := p.ChooseBestEndpoint()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	a.transport.AssertNotCalled(t, "HeaderByNumber", mock.Anything, mock.Anything)
}

func TestVerifyEndpoint_HeadBehind(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.params.MaxHeadBehind = 2 * time.Minute
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(100, 10*time.Minute), nil)

	p := newTestPool(t, 1, []testEndpoint{a})

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, VerifyHeadBehind, r.Kind)
	assert.InDelta(t, 600, r.HeadSecondsBehind, 2)
	assert.False(t, viewOf(t, p, 0).Allowed)
}

func TestVerifyEndpoint_NoBlockInfo(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(&types.Header{Number: big.NewInt(1)}, nil)

	p := newTestPool(t, 1, []testEndpoint{a})

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, VerifyNoBlockInfo, r.Kind)
}

func TestVerifyEndpoint_TransportFailure(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(nil, &jsonRPCError{code: -32601, msg: "method not found"})

	p := newTestPool(t, 1, []testEndpoint{a})

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.Equal(t, VerifyRPCError, r.Kind)
	assert.Equal(t, "method not found", r.Message)
}

func TestVerifyEndpoint_CriticalPenaltyRisesAndRecovers(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(5), nil).Times(5)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(10, time.Second), nil)

	p := newTestPool(t, 1, []testEndpoint{a})

	for i := 0; i < 5; i++ {
		_, err := p.VerifyEndpoint(context.Background(), 0, true)
		require.NoError(t, err)
	}
	assert.Equal(t, maxCriticalScore, viewOf(t, p, 0).CriticalPenalty)

	r, err := p.VerifyEndpoint(context.Background(), 0, true)
	require.NoError(t, err)
	assert.True(t, r.OK())
	v := viewOf(t, p, 0)
	assert.Equal(t, maxCriticalScore/2, v.CriticalPenalty)
	assert.True(t, v.Allowed)
	assert.False(t, v.Failing(time.Now()))
}

func TestVerifyEndpoint_SkipsWhenRecentlyVerified(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.params.VerifyInterval = time.Hour
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil).Once()
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(10, time.Second), nil).Once()

	p := newTestPool(t, 1, []testEndpoint{a})

	first, err := p.VerifyEndpoint(context.Background(), 0, false)
	require.NoError(t, err)
	second, err := p.VerifyEndpoint(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, first.Kind, second.Kind)
	a.transport.AssertExpectations(t)

	_, err = p.VerifyEndpoint(context.Background(), 3, true)
	assert.ErrorIs(t, err, ErrNoEndpointAvailable)
}

func TestVerifyAll(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	b := endpoint("b", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(11155111), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(10, time.Second), nil)
	b.transport.On("ChainID", mock.Anything).Return(nil, errors.New("connection reset"))

	p := newTestPool(t, 11155111, []testEndpoint{a, b})

	require.True(t, p.VerifyAll(context.Background(), true))
	assert.Equal(t, 1, p.GetHealthyNodeCount())
	assert.Equal(t, 2, p.GetTotalNodeCount())

	// a round already in flight is not doubled
	p.verifying <- struct{}{}
	assert.False(t, p.VerifyAll(context.Background(), true))
	<-p.verifying
}
