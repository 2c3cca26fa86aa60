package rpcpool

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestChoose_RetriesEndpointOnceWindowExpires(t *testing.T) {
	var s selector
	now := time.Now()

	healthy := freshView(0, 0)
	healthy.DecayedSuccess, healthy.DecayedTotal = 50, 50
	recovering := freshView(1, 0)
	recovering.ConsecutiveErrors = 1
	recovering.DecayedTotal = 1
	recovering.RetryAfter = now.Add(-time.Millisecond)
	recovering.LastChosen = now.Add(-time.Second)

	idx, _ := s.choose([]EndpointView{healthy, recovering}, now)
	assert.Equal(t, 1, idx, "expired endpoint gets one more try")

	// once tried it competes on score again
	recovering.LastChosen = now
	for i := 0; i < 4; i++ {
		idx, _ = s.choose([]EndpointView{healthy, recovering}, now)
		assert.Equal(t, 0, idx)
	}

	// the extra try never jumps across backup tiers
	backup := recovering
	backup.LastChosen = now.Add(-time.Second)
	backup.Params.BackupLevel = 1
	idx, _ = s.choose([]EndpointView{healthy, backup}, now)
	assert.Equal(t, 0, idx)
}

func TestChoose_NearPerfectScoresShareTopBucket(t *testing.T) {
	var s selector
	perfect := freshView(0, 0)
	near := freshView(1, 0)
	near.VerifyResult = VerifyResult{Kind: VerifySuccess, CheckTime: 80 * time.Millisecond}
	require.Greater(t, Score(near), 95.0)

	counts := map[int]int{}
	for i := 0; i < 10; i++ {
		idx, _ := s.choose([]EndpointView{perfect, near}, time.Now())
		counts[idx]++
	}
	assert.Equal(t, map[int]int{0: 5, 1: 5}, counts)
}

func TestPool_FailedEndpointRejoinsRotation(t *testing.T) {
	a := endpoint("a", 0, 20*time.Millisecond)
	b := endpoint("b", 0, time.Second)
	a.transport.On("BlockNumber", mock.Anything).Run(blockUntilDone).Return(uint64(0), context.DeadlineExceeded).Once()
	a.transport.On("BlockNumber", mock.Anything).Return(uint64(7), nil)
	b.transport.On("BlockNumber", mock.Anything).Return(uint64(7), nil)

	p := newTestPool(t, 1, []testEndpoint{a, b})
	ctx := context.Background()

	// first call rotates to b, second to a which times out and fails over
	for i := 0; i < 2; i++ {
		n, err := p.BlockNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), n)
	}
	require.Equal(t, 1, viewOf(t, p, 0).ConsecutiveErrors)

	ea, _ := p.Registry().Get(0)
	ea.mu.Lock()
	ea.retryAfter = time.Now().Add(-time.Millisecond)
	ea.mu.Unlock()

	// the expired endpoint is tried again and its streak cleared
	_, err := p.BlockNumber(ctx)
	require.NoError(t, err)
	va := viewOf(t, p, 0)
	assert.Zero(t, va.ConsecutiveErrors)
	assert.Equal(t, uint64(1), va.Succeeded)

	// after the failure has decayed a shares the load with b again
	ea.mu.Lock()
	ea.decayAt = ea.decayAt.Add(-10 * decayHalfLife)
	ea.mu.Unlock()

	before := viewOf(t, p, 0).Succeeded
	for i := 0; i < 20; i++ {
		_, err := p.BlockNumber(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, before+10, viewOf(t, p, 0).Succeeded)
}

func TestPool_SelectionStartsVerificationWhenDue(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	a.transport.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	a.transport.On("HeaderByNumber", mock.Anything, mock.Anything).Return(headerAgo(42, time.Second), nil)

	p := newTestPool(t, 1, []testEndpoint{a}, WithAutoVerify(true))

	_, ok := p.ChooseBestEndpoint()
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return viewOf(t, p, 0).VerifyResult.Kind == VerifySuccess
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(42), viewOf(t, p, 0).HeadBlock)

	// wait for the round to release before checking it is not started again
	assert.Eventually(t, func() bool { return len(p.verifying) == 0 }, time.Second, 5*time.Millisecond)
	_, _ = p.ChooseBestEndpoint()
	assert.Zero(t, len(p.verifying))
	a.transport.AssertNumberOfCalls(t, "ChainID", 1)
}

func TestPool_SelectionSkipsVerificationWhenDisabled(t *testing.T) {
	a := endpoint("a", 0, time.Second)
	p := newTestPool(t, 1, []testEndpoint{a})

	_, ok := p.ChooseBestEndpoint()
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	a.transport.AssertNotCalled(t, "ChainID", mock.Anything)
}
