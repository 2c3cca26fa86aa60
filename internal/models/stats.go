package models

import "time"

// EndpointStat 单个节点在某一时刻的统计快照，对应 rpc_endpoint_stats 表
type EndpointStat struct {
	ID                int64     `db:"id"`
	RecordedAt        time.Time `db:"recorded_at"`
	ChainID           int64     `db:"chain_id"`
	EndpointIndex     int       `db:"endpoint_index"`
	Name              string    `db:"name"`
	URL               string    `db:"url"` // masked
	BackupLevel       int       `db:"backup_level"`
	Total             int64     `db:"total"`
	Succeeded         int64     `db:"succeeded"`
	Errors            int64     `db:"errors"`
	ConsecutiveErrors int       `db:"consecutive_errors"`
	LastResult        string    `db:"last_result"`
	VerifyResult      string    `db:"verify_result"`
	HeadSecondsBehind int64     `db:"head_seconds_behind"`
	HeadBlock         Uint256   `db:"head_block"`
	Score             float64   `db:"score"`
	Failing           bool      `db:"failing"`
}
