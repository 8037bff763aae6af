package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage/clickhouse"
)

func TestTradeArchive_InsertBulkAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := clickhouse.NewTradeArchive(conn)
	ctx := context.Background()

	trades := []*domain.TradeEvent{
		{Symbol: "BTCUSDT", Price: 100.5, Quantity: 0.25, EventTimeMillis: 1_700_000_001_000},
		{Symbol: "BTCUSDT", Price: 100.7, Quantity: 0.50, EventTimeMillis: 1_700_000_002_000},
		{Symbol: "ETHUSDT", Price: 2000.0, Quantity: 1.00, EventTimeMillis: 1_700_000_001_500},
		{Symbol: "BTCUSDT", Price: 100.9, Quantity: 0.10, EventTimeMillis: 1_700_000_010_000},
	}
	require.NoError(t, archive.InsertBulk(ctx, trades))

	result, err := archive.GetByTimeRange(ctx, "BTCUSDT", 1_700_000_000_000, 1_700_000_005_000)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, int64(1_700_000_001_000), result[0].EventTimeMillis)
	assert.Equal(t, 100.5, result[0].Price)
	assert.Equal(t, 0.25, result[0].Quantity)
	assert.Equal(t, int64(1_700_000_002_000), result[1].EventTimeMillis)
}

func TestTradeArchive_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := clickhouse.NewTradeArchive(conn)
	require.NoError(t, archive.InsertBulk(context.Background(), nil))
}
