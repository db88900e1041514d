package repository

import "fmt"

// Schema returns the idempotent DDL for every table the store writes.
// Positions and strategy performance are versioned rows in ReplacingMergeTree;
// reads use FINAL to see the latest version.
func Schema(database string) []string {
	const (
		signals = `CREATE TABLE IF NOT EXISTS %[1]s.signals (
	id                String,
	symbol            LowCardinality(String),
	action            LowCardinality(String),
	confidence        Decimal(10, 4),
	strategy_id       LowCardinality(String),
	price             Decimal(20, 8),
	reasoning         String,
	regime            LowCardinality(String),
	regime_confidence Decimal(10, 4),
	volatility        Decimal(12, 6),
	trend             Decimal(12, 6),
	momentum          Decimal(12, 6),
	ts                DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts, id)`

		positions = `CREATE TABLE IF NOT EXISTS %[1]s.positions (
	id                  String,
	signal_id           String,
	symbol              LowCardinality(String),
	side                LowCardinality(String),
	strategy_id         LowCardinality(String),
	method              LowCardinality(String),
	size                Decimal(20, 8),
	entry_price         Decimal(20, 8),
	current_price       Decimal(20, 8),
	unrealized_pnl      Decimal(20, 8),
	unrealized_pnl_pct  Decimal(10, 4),
	trailing_stop       Decimal(20, 8),
	take_profit         Decimal(20, 8),
	edge_decay          Decimal(10, 4),
	max_drawdown        Decimal(10, 4),
	peak_pnl            Decimal(20, 8),
	atr                 Decimal(20, 8),
	status              LowCardinality(String),
	exit_reason         String,
	entry_time          DateTime64(3, 'UTC'),
	updated_at          DateTime64(3, 'UTC'),
	version             UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY id`

		performance = `CREATE TABLE IF NOT EXISTS %[1]s.strategy_performance (
	strategy_id LowCardinality(String),
	name        String,
	wins        UInt32,
	trials      UInt32,
	total_pnl   Decimal(20, 8),
	alpha       Float64,
	beta        Float64,
	history     Array(Float64),
	updated_at  DateTime64(3, 'UTC'),
	version     UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY strategy_id`

		features = `CREATE TABLE IF NOT EXISTS %[1]s.market_features (
	symbol            LowCardinality(String),
	ts                DateTime64(3, 'UTC'),
	vvix              Decimal(12, 6),
	ofi               Decimal(12, 6),
	vpin              Decimal(12, 6),
	correlation       Decimal(12, 6),
	liquidity         Decimal(12, 6),
	volatility        Decimal(12, 6),
	momentum          Decimal(12, 6),
	mean_reversion    Decimal(12, 6),
	trend             Decimal(12, 6),
	regime            LowCardinality(String),
	regime_confidence Decimal(10, 4)
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (symbol, ts)
TTL toDateTime(ts) + INTERVAL 30 DAY`
	)

	out := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tpl := range []string{signals, positions, performance, features} {
		out = append(out, fmt.Sprintf(tpl, database))
	}
	return out
}
