package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaTargetsDatabase(t *testing.T) {
	stmts := Schema("finedge")
	require.Len(t, stmts, 5)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS finedge", stmts[0])
	for _, table := range []string{"signals", "positions", "strategy_performance", "market_features"} {
		found := false
		for _, s := range stmts[1:] {
			if strings.Contains(s, "finedge."+table+" (") {
				found = true
			}
		}
		assert.True(t, found, table)
	}
	assert.Contains(t, stmts[2], "ReplacingMergeTree(version)")
	assert.Contains(t, stmts[2], "Decimal(20, 8)")
}

func TestClosedPositionsQuery(t *testing.T) {
	q, args := closedPositionsQuery("finedge.positions", "", 10)
	assert.Contains(t, q, "FROM finedge.positions FINAL")
	assert.NotContains(t, q, "symbol = ?")
	assert.Equal(t, []any{statusClosed, 10}, args)

	q, args = closedPositionsQuery("finedge.positions", "BTCUSDT", 5)
	assert.Contains(t, q, "status = ? AND symbol = ?")
	assert.Equal(t, []any{statusClosed, "BTCUSDT", 5}, args)
}
