package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// InitSchema 确保节点统计表结构已就绪
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	slog.Info("🛡️ [Database] Initializing Schema...")

	schema := `
	CREATE TABLE IF NOT EXISTS rpc_endpoint_stats (
		id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		chain_id BIGINT NOT NULL,
		endpoint_index INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		backup_level INTEGER NOT NULL DEFAULT 0,
		total BIGINT NOT NULL DEFAULT 0,
		succeeded BIGINT NOT NULL DEFAULT 0,
		errors BIGINT NOT NULL DEFAULT 0,
		consecutive_errors INTEGER NOT NULL DEFAULT 0,
		last_result VARCHAR(32) NOT NULL DEFAULT 'not_verified',
		verify_result VARCHAR(32) NOT NULL DEFAULT 'not_verified',
		head_seconds_behind BIGINT NOT NULL DEFAULT 0,
		head_block NUMERIC NOT NULL DEFAULT 0,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		failing BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_rpc_endpoint_stats_recorded_at ON rpc_endpoint_stats(recorded_at)",
		"CREATE INDEX IF NOT EXISTS idx_rpc_endpoint_stats_name ON rpc_endpoint_stats(chain_id, name, recorded_at DESC)",
	}
	for _, idx := range indices {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			slog.Warn("failed_to_create_index", "err", err)
		}
	}

	slog.Info("✅ [Database] Schema is ready.")
	return nil
}
