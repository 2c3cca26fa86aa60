package rpcpool

import (
	"math"
	"sort"
	"sync/atomic"
	"time"
)

const (
	// errorPenalty is added per consecutive error.
	errorPenalty = 10
	// priorSuccesses are virtual successes that keep fresh or idle endpoints attractive.
	priorSuccesses = 10.0
	// scoreBucket groups near-equal scores so that they rotate. Buckets round
	// up, so any score within 5 of a perfect 100 shares the top bucket.
	scoreBucket = 5.0
)

// Score computes the health score of an endpoint view in the 0..100 range.
//
//	penalty = 10*consecutiveErrors + criticalPenalty + checkMs/10 + headSecondsBehind
//	ratio   = (decayedSuccess + 10) / (decayedTotal + 10)
//	score   = 100 * exp(-penalty/200) * ratio
func Score(v EndpointView) float64 {
	penalty := float64(errorPenalty*v.ConsecutiveErrors + v.CriticalPenalty)
	if v.VerifyResult.OK() {
		penalty += float64(v.VerifyResult.CheckTime.Milliseconds()) / 10
		penalty += float64(v.VerifyResult.HeadSecondsBehind)
	}
	ratio := (v.DecayedSuccess + priorSuccesses) / (v.DecayedTotal + priorSuccesses)
	return 100 * math.Exp(-penalty/200) * ratio
}

type rankedEndpoint struct {
	index       int
	failing     bool
	backupLevel int
	bucket      int
	score       float64
	// recheck marks an endpoint whose retry window has expired and that has not
	// been tried since. It gets one attempt before normal ranking resumes.
	recheck bool
}

// less orders by (failing, backupLevel, bucket desc).
func (a rankedEndpoint) less(b rankedEndpoint) bool {
	if a.failing != b.failing {
		return !a.failing
	}
	if a.backupLevel != b.backupLevel {
		return a.backupLevel < b.backupLevel
	}
	return a.bucket > b.bucket
}

func (a rankedEndpoint) tied(b rankedEndpoint) bool {
	return a.failing == b.failing && a.backupLevel == b.backupLevel && a.bucket == b.bucket
}

// rankEndpoints sorts views best-first.
func rankEndpoints(views []EndpointView, now time.Time) []rankedEndpoint {
	ranked := make([]rankedEndpoint, 0, len(views))
	for _, v := range views {
		s := Score(v)
		ranked = append(ranked, rankedEndpoint{
			index:       v.Index,
			failing:     v.Failing(now),
			backupLevel: v.Params.BackupLevel,
			bucket:      int(math.Ceil(s / scoreBucket)),
			score:       s,
			recheck:     v.awaitingRecheck(now),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].less(ranked[j]) })
	return ranked
}

// selector picks the next endpoint. The rotation counter spreads load over
// endpoints that rank equally.
type selector struct {
	rotation atomic.Uint64
}

func (s *selector) choose(views []EndpointView, now time.Time) (int, bool) {
	if len(views) == 0 {
		return 0, false
	}
	ranked := rankEndpoints(views, now)
	best := ranked[0]
	if !best.failing {
		for _, r := range ranked {
			if r.recheck && r.backupLevel == best.backupLevel {
				return r.index, true
			}
		}
	}
	n := 1
	for n < len(ranked) && ranked[n].tied(best) {
		n++
	}
	pick := ranked[int(s.rotation.Add(1)%uint64(n))]
	return pick.index, true
}

// ChooseBestEndpoint returns the index of the endpoint to try next. It returns
// false only when no endpoint is registered; when every endpoint is failing the
// least-bad one is returned so that recovery can be observed.
func (p *Pool) ChooseBestEndpoint() (int, bool) {
	now := time.Now()
	views := p.registry.Snapshot()
	if p.autoVerify {
		p.startVerifyIfNeeded(views, now)
	}
	idx, ok := p.selector.choose(views, now)
	if !ok {
		return 0, false
	}
	if e, found := p.registry.Get(idx); found {
		e.markChosen(now)
	}
	return idx, true
}
