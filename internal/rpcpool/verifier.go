package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"web3-rpcpool-go/internal/recovery"
	"web3-rpcpool-go/pkg/network"
)

// VerifyEndpoint checks that the endpoint serves the configured chain, has a
// fresh head and answers within its timeout. Unless force is set an endpoint
// verified less than VerifyInterval ago is skipped and its previous result returned.
func (p *Pool) VerifyEndpoint(ctx context.Context, index int, force bool) (VerifyResult, error) {
	e, ok := p.registry.Get(index)
	if !ok {
		return VerifyResult{}, fmt.Errorf("endpoint %d: %w", index, ErrNoEndpointAvailable)
	}

	e.mu.Lock()
	lastVerified, previous := e.lastVerified, e.verifyResult
	e.mu.Unlock()
	if !force && !lastVerified.IsZero() && time.Since(lastVerified) < e.params.VerifyInterval {
		Logger.Debug("rpc_verify_skipped", "endpoint", e.params.Name, "last_verified", lastVerified)
		return previous, nil
	}

	result, head := p.verifyOnce(ctx, e)
	if ctx.Err() != nil {
		return VerifyResult{}, ctx.Err()
	}
	p.applyVerification(e, result, head)
	return result, nil
}

func (p *Pool) verifyOnce(ctx context.Context, e *Endpoint) (VerifyResult, uint64) {
	vctx, cancel := context.WithTimeout(ctx, e.params.MaxTimeout)
	defer cancel()
	start := time.Now()

	if _, err := network.VerifyChainID(vctx, e.transport, p.chainID); err != nil {
		if errors.Is(err, network.ErrChainIDMismatch) {
			return VerifyResult{Kind: VerifyWrongChainID, Message: err.Error()}, 0
		}
		return classify(ctx, err).result, 0
	}

	header, err := e.transport.HeaderByNumber(vctx, nil)
	if err != nil {
		return classify(ctx, err).result, 0
	}
	if header == nil || header.Number == nil || header.Time == 0 {
		return VerifyResult{Kind: VerifyNoBlockInfo, Message: "latest block has no timestamp"}, 0
	}

	lag := time.Since(time.Unix(int64(header.Time), 0))
	if lag < 0 {
		lag = 0
	}
	head := header.Number.Uint64()
	if limit := e.params.MaxHeadBehind; limit > 0 && lag > limit {
		return VerifyResult{
			Kind:              VerifyHeadBehind,
			Message:           fmt.Sprintf("head %s behind", lag.Truncate(time.Second)),
			HeadSecondsBehind: int64(lag.Seconds()),
		}, head
	}
	return VerifyResult{
		Kind:              VerifySuccess,
		HeadSecondsBehind: int64(lag.Seconds()),
		CheckTime:         time.Since(start),
	}, head
}

func (p *Pool) applyVerification(e *Endpoint, r VerifyResult, head uint64) {
	now := time.Now()

	e.mu.Lock()
	e.lastVerified = now
	e.verifyResult = r
	if head > 0 {
		e.headBlock = head
	}
	if r.OK() {
		e.allowed = true
		e.criticalPenalty /= 2
		e.consecutiveErrors = 0
		e.retryAfter = time.Time{}
	} else {
		e.allowed = false
		e.criticalPenalty += 100
		if e.criticalPenalty > maxCriticalScore {
			e.criticalPenalty = maxCriticalScore
		}
	}
	e.mu.Unlock()

	score := Score(e.view(now))
	p.metrics.RecordVerification(e.params.Name, r.Kind, score)
	LogVerifyFinished(e.params.Name, r, score)
}

// VerifyAll verifies every endpoint concurrently. It returns false without
// doing anything when another round is still running.
func (p *Pool) VerifyAll(ctx context.Context, force bool) bool {
	if !p.tryStartRound() {
		Logger.Debug("rpc_verify_round_in_progress")
		return false
	}
	defer p.endRound()
	p.verifyRound(ctx, force)
	return true
}

func (p *Pool) tryStartRound() bool {
	select {
	case p.verifying <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *Pool) endRound() { <-p.verifying }

// startVerifyIfNeeded launches a background round when any endpoint is due
// for verification and no round is already running. It never blocks.
func (p *Pool) startVerifyIfNeeded(views []EndpointView, now time.Time) {
	due := 0
	for _, v := range views {
		if v.dueForVerification(now) {
			due++
		}
	}
	if due == 0 || p.ctx.Err() != nil || !p.tryStartRound() {
		return
	}
	Logger.Debug("rpc_verify_triggered", "due_endpoints", due)
	recovery.WithRecovery(func() {
		defer p.endRound()
		p.verifyRound(p.ctx, false)
	}, "rpc_auto_verify")
}

func (p *Pool) verifyRound(ctx context.Context, force bool) {
	endpoints := p.registry.all()
	var wg sync.WaitGroup
	for _, e := range endpoints {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			recovery.WithRecoveryNamed("rpc_verify_endpoint", func() {
				if _, err := p.VerifyEndpoint(ctx, idx, force); err != nil {
					Logger.Warn("rpc_verify_aborted", "index", idx, "error", err.Error())
				}
			})
		}(e.index)
	}
	wg.Wait()

	p.metrics.UpdateHealthyEndpoints(p.chainID, p.GetHealthyNodeCount())
}

// StartVerifier runs VerifyAll immediately and then every interval until ctx is done.
func (p *Pool) StartVerifier(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	recovery.WithRecovery(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		p.VerifyAll(ctx, false)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.VerifyAll(ctx, false)
			}
		}
	}, "rpc_verifier")
}
