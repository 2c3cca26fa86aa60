package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"web3-rpcpool-go/internal/models"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an existing handle (tests, shared pools).
func NewRepositoryFromDB(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB { return r.db }

func (r *Repository) Close() error {
	return r.db.Close()
}

const insertEndpointStat = `
	INSERT INTO rpc_endpoint_stats
	(recorded_at, chain_id, endpoint_index, name, url, backup_level, total, succeeded, errors,
	 consecutive_errors, last_result, verify_result, head_seconds_behind, head_block, score, failing)
	VALUES
	(:recorded_at, :chain_id, :endpoint_index, :name, :url, :backup_level, :total, :succeeded, :errors,
	 :consecutive_errors, :last_result, :verify_result, :head_seconds_behind, :head_block, :score, :failing)
`

// SaveEndpointStats 在同一事务中写入一批快照
func (r *Repository) SaveEndpointStats(ctx context.Context, stats []models.EndpointStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for i := range stats {
		if _, err := tx.NamedExecContext(ctx, insertEndpointStat, &stats[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert stats for %s: %w", stats[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats: %w", err)
	}
	return nil
}

// EndpointHistory 返回某个节点最近 limit 条快照，按时间倒序
func (r *Repository) EndpointHistory(ctx context.Context, chainID int64, name string, limit int) ([]models.EndpointStat, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.EndpointStat
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, recorded_at, chain_id, endpoint_index, name, url, backup_level, total, succeeded, errors,
		       consecutive_errors, last_result, verify_result, head_seconds_behind, head_block, score, failing
		FROM rpc_endpoint_stats
		WHERE chain_id = $1 AND name = $2
		ORDER BY recorded_at DESC
		LIMIT $3`, chainID, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", name, err)
	}
	return out, nil
}

// DeleteOlderThan 清理过期快照，返回删除行数
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rpc_endpoint_stats WHERE recorded_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stats: %w", err)
	}
	return res.RowsAffected()
}
