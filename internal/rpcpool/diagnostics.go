package rpcpool

import (
	"time"

	"web3-rpcpool-go/pkg/network"
)

// EndpointInfo is the JSON-facing form of one endpoint record.
type EndpointInfo struct {
	Index             int                    `json:"index"`
	Name              string                 `json:"name"`
	URL               string                 `json:"url"` // masked
	BackupLevel       int                    `json:"backupLevel"`
	Total             uint64                 `json:"total"`
	Succeeded         uint64                 `json:"succeeded"`
	Errors            uint64                 `json:"errors"`
	ConsecutiveErrors int                    `json:"consecutiveErrors"`
	LastResult        VerifyResult           `json:"lastResult"`
	LastSuccess       *time.Time             `json:"lastSuccess,omitempty"`
	LastError         *time.Time             `json:"lastError,omitempty"`
	RetryAfter        *time.Time             `json:"retryAfter,omitempty"`
	LastVerified      *time.Time             `json:"lastVerified,omitempty"`
	VerifyResult      VerifyResult           `json:"verifyResult"`
	Allowed           bool                   `json:"allowed"`
	CriticalPenalty   int                    `json:"criticalPenalty"`
	HeadBlock         uint64                 `json:"headBlock"`
	MinIntervalMs     int64                  `json:"minIntervalMs"`
	Score             float64                `json:"score"`
	Failing           bool                   `json:"failing"`
	Methods           map[string]MethodStats `json:"methods"`
}

// PoolInfo 连接池整体概况
type PoolInfo struct {
	ChainID          int64   `json:"chainId"`
	Network          string  `json:"network"`
	HealthyEndpoints int     `json:"healthyEndpoints"`
	TotalEndpoints   int     `json:"totalEndpoints"`
	RequestsToday    uint64  `json:"requestsToday"`
	QuotaUsage       float64 `json:"quotaUsagePercent"`
	RequestsPerSec   float64 `json:"requestsPerSecond"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func infoFromView(v EndpointView, now time.Time) EndpointInfo {
	return EndpointInfo{
		Index:             v.Index,
		Name:              v.Params.Name,
		URL:               maskURL(v.Params.URL),
		BackupLevel:       v.Params.BackupLevel,
		Total:             v.Total,
		Succeeded:         v.Succeeded,
		Errors:            v.Errors,
		ConsecutiveErrors: v.ConsecutiveErrors,
		LastResult:        v.LastResult,
		LastSuccess:       timePtr(v.LastSuccess),
		LastError:         timePtr(v.LastError),
		RetryAfter:        timePtr(v.RetryAfter),
		LastVerified:      timePtr(v.LastVerified),
		VerifyResult:      v.VerifyResult,
		Allowed:           v.Allowed,
		CriticalPenalty:   v.CriticalPenalty,
		HeadBlock:         v.HeadBlock,
		MinIntervalMs:     v.MinInterval.Milliseconds(),
		Score:             Score(v),
		Failing:           v.Failing(now),
		Methods:           v.Methods,
	}
}

// EndpointsInfo returns one entry per registered endpoint in registry order.
// Each entry is consistent on its own; entries may be taken at slightly
// different instants.
func (p *Pool) EndpointsInfo() []EndpointInfo {
	now := time.Now()
	views := p.registry.Snapshot()
	out := make([]EndpointInfo, 0, len(views))
	for _, v := range views {
		out = append(out, infoFromView(v, now))
	}
	return out
}

// EndpointInfo returns the diagnostics entry for one endpoint.
func (p *Pool) EndpointInfo(index int) (EndpointInfo, bool) {
	e, ok := p.registry.Get(index)
	if !ok {
		return EndpointInfo{}, false
	}
	now := time.Now()
	return infoFromView(e.view(now), now), true
}

// PoolInfo returns aggregate pool state.
func (p *Pool) PoolInfo() PoolInfo {
	return PoolInfo{
		ChainID:          p.chainID,
		Network:          network.Name(p.chainID),
		HealthyEndpoints: p.GetHealthyNodeCount(),
		TotalEndpoints:   p.GetTotalNodeCount(),
		RequestsToday:    p.quota.Used(),
		QuotaUsage:       p.quota.GetUsagePercent(),
		RequestsPerSec:   p.rate.GetRPS(),
	}
}
