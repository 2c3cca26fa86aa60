// Package recorder periodically snapshots the pool diagnostics, stores them
// and pushes them to websocket subscribers.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"web3-rpcpool-go/internal/models"
	"web3-rpcpool-go/internal/recovery"
	"web3-rpcpool-go/internal/rpcpool"
	"web3-rpcpool-go/internal/web"
)

// Source provides the snapshots.
type Source interface {
	EndpointsInfo() []rpcpool.EndpointInfo
	PoolInfo() rpcpool.PoolInfo
}

// Store persists snapshots. A nil Store disables persistence.
type Store interface {
	SaveEndpointStats(ctx context.Context, stats []models.EndpointStat) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Broadcaster receives every snapshot, normally the websocket hub.
type Broadcaster interface {
	Broadcast(event interface{})
}

type Recorder struct {
	source    Source
	store     Store
	out       Broadcaster
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func New(source Source, store Store, out Broadcaster, interval, retention time.Duration) *Recorder {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Recorder{
		source:    source,
		store:     store,
		out:       out,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    rpcpool.Logger,
	}
}

// ToStats converts a diagnostics snapshot into table rows.
func ToStats(chainID int64, at time.Time, infos []rpcpool.EndpointInfo) []models.EndpointStat {
	out := make([]models.EndpointStat, 0, len(infos))
	for _, info := range infos {
		out = append(out, models.EndpointStat{
			RecordedAt:        at,
			ChainID:           chainID,
			EndpointIndex:     info.Index,
			Name:              info.Name,
			URL:               info.URL,
			BackupLevel:       info.BackupLevel,
			Total:             int64(info.Total),
			Succeeded:         int64(info.Succeeded),
			Errors:            int64(info.Errors),
			ConsecutiveErrors: info.ConsecutiveErrors,
			LastResult:        info.LastResult.Kind.String(),
			VerifyResult:      info.VerifyResult.Kind.String(),
			HeadSecondsBehind: info.VerifyResult.HeadSecondsBehind,
			HeadBlock:         models.NewUint256(info.HeadBlock),
			Score:             info.Score,
			Failing:           info.Failing,
		})
	}
	return out
}

// RecordOnce takes one snapshot. Persistence errors are logged, never returned,
// so a database outage does not stop the broadcast.
func (r *Recorder) RecordOnce(ctx context.Context) {
	now := r.now()
	infos := r.source.EndpointsInfo()
	pool := r.source.PoolInfo()

	if r.out != nil {
		r.out.Broadcast(web.WSEvent{Type: web.EventEndpoints, Data: infos})
		r.out.Broadcast(web.WSEvent{Type: web.EventPool, Data: pool})
	}

	if r.store == nil {
		return
	}
	if err := r.store.SaveEndpointStats(ctx, ToStats(pool.ChainID, now, infos)); err != nil {
		r.logger.Error("stats_persist_failed", slog.String("error", err.Error()))
	}
	if r.retention > 0 {
		n, err := r.store.DeleteOlderThan(ctx, now.Add(-r.retention))
		if err != nil {
			r.logger.Warn("stats_prune_failed", slog.String("error", err.Error()))
		} else if n > 0 {
			r.logger.Debug("stats_pruned", slog.Int64("rows", n))
		}
	}
}

// Start runs RecordOnce every interval in the background until ctx is done.
func (r *Recorder) Start(ctx context.Context) {
	recovery.WithRecovery(func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		r.logger.Info("📊 stats_recorder_started", slog.Duration("interval", r.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RecordOnce(ctx)
			}
		}
	}, "stats_recorder")
}
