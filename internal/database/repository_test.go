package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3-rpcpool-go/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepositoryFromDB(sqlx.NewDb(db, "sqlmock")), mockDB
}

func sampleStats() []models.EndpointStat {
	now := time.Now()
	return []models.EndpointStat{
		{RecordedAt: now, ChainID: 1, EndpointIndex: 0, Name: "alpha", HeadBlock: models.NewUint256(19000000)},
		{RecordedAt: now, ChainID: 1, EndpointIndex: 1, Name: "beta", Failing: true},
	}
}

func TestSaveEndpointStats(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("INSERT INTO rpc_endpoint_stats").WillReturnResult(sqlmock.NewResult(1, 1))
	mockDB.ExpectExec("INSERT INTO rpc_endpoint_stats").WillReturnResult(sqlmock.NewResult(2, 1))
	mockDB.ExpectCommit()

	require.NoError(t, repo.SaveEndpointStats(context.Background(), sampleStats()))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSaveEndpointStats_RollsBackOnError(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("INSERT INTO rpc_endpoint_stats").WillReturnError(errors.New("disk full"))
	mockDB.ExpectRollback()

	err := repo.SaveEndpointStats(context.Background(), sampleStats())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSaveEndpointStats_Empty(t *testing.T) {
	repo, mockDB := newMockRepo(t)
	require.NoError(t, repo.SaveEndpointStats(context.Background(), nil))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestDeleteOlderThan(t *testing.T) {
	repo, mockDB := newMockRepo(t)
	cutoff := time.Now().Add(-24 * time.Hour)

	mockDB.ExpectExec("DELETE FROM rpc_endpoint_stats WHERE recorded_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEndpointHistory(t *testing.T) {
	repo, mockDB := newMockRepo(t)
	now := time.Now()

	cols := []string{"id", "recorded_at", "chain_id", "endpoint_index", "name", "url", "backup_level",
		"total", "succeeded", "errors", "consecutive_errors", "last_result", "verify_result",
		"head_seconds_behind", "head_block", "score", "failing"}
	rows := sqlmock.NewRows(cols).
		AddRow(2, now, 1, 0, "alpha", "https://a", 0, 10, 9, 1, 0, "success", "success", 3, "19000001", 87.5, false).
		AddRow(1, now.Add(-time.Minute), 1, 0, "alpha", "https://a", 0, 5, 5, 0, 0, "success", "success", 2, "19000000", 90.0, false)

	mockDB.ExpectQuery("SELECT (.+) FROM rpc_endpoint_stats").
		WithArgs(int64(1), "alpha", 100).
		WillReturnRows(rows)

	out, err := repo.EndpointHistory(context.Background(), 1, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "19000001", out[0].HeadBlock.String())
	assert.InDelta(t, 87.5, out[0].Score, 0.001)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestInitSchema(t *testing.T) {
	repo, mockDB := newMockRepo(t)

	mockDB.ExpectExec("CREATE TABLE IF NOT EXISTS rpc_endpoint_stats").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("CREATE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("CREATE INDEX").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, InitSchema(context.Background(), repo.DB()))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
