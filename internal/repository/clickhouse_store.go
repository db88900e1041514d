package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	pkgch "FinEdge/pkg/clickhouse"
	applogger "FinEdge/pkg/logger"

	"github.com/google/uuid"
)

const (
	statusOpen   = "open"
	statusClosed = "closed"
)

// CHStore is the synchronous ClickHouse gateway. Every numeric value is
// clamped to its column bounds before it is bound to a statement.
type CHStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
	now      func() time.Time
}

func NewCHStore(ch *pkgch.Client, l *applogger.Logger) *CHStore {
	return newCHStore(ch.DB(), ch.Database(), l)
}

func newCHStore(db *sql.DB, database string, l *applogger.Logger) *CHStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHStore{db: db, database: database, l: l, now: time.Now}
}

func (s *CHStore) table(name string) string { return s.database + "." + name }

// version orders ReplacingMergeTree rows; later writes win.
func (s *CHStore) version() uint64 { return uint64(s.now().UnixNano()) }

func (s *CHStore) exec(ctx context.Context, op, q string, args ...any) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse exec error",
			applogger.String("op", op),
			applogger.Error(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.l.Debug("clickhouse exec ok",
		applogger.String("op", op),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// SaveSignal stores sig and returns the generated id.
func (s *CHStore) SaveSignal(ctx context.Context, sig models.TradingSignal, fs models.FeatureSet, r models.MarketRegime) (string, error) {
	id := uuid.NewString()
	ts := sig.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(id, symbol, action, confidence, strategy_id, price, reasoning, regime, regime_confidence, volatility, trend, momentum, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("signals"))
	err := s.exec(ctx, "save signal", q,
		id,
		sig.Symbol,
		string(sig.Action),
		models.ClampConfidence(sig.Confidence),
		sig.StrategyID,
		models.ClampAmount(sig.Price),
		sig.Reasoning,
		string(r.Kind),
		models.ClampConfidence(r.Confidence),
		models.ClampFeature(fs.Volatility),
		models.ClampFeature(fs.Trend),
		models.ClampFeature(fs.Momentum),
		ts.UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *CHStore) SavePosition(ctx context.Context, p models.Position, signalID string) error {
	p.SignalID = signalID
	return s.writePosition(ctx, "save position", p, statusOpen, "")
}

func (s *CHStore) UpdatePosition(ctx context.Context, p models.Position) error {
	return s.writePosition(ctx, "update position", p, statusOpen, "")
}

func (s *CHStore) ClosePosition(ctx context.Context, p models.Position, reason string) error {
	return s.writePosition(ctx, "close position", p, statusClosed, reason)
}

func (s *CHStore) writePosition(ctx context.Context, op string, p models.Position, status, reason string) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(id, signal_id, symbol, side, strategy_id, method, size, entry_price, current_price,
		 unrealized_pnl, unrealized_pnl_pct, trailing_stop, take_profit, edge_decay, max_drawdown,
		 peak_pnl, atr, status, exit_reason, entry_time, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("positions"))
	updated := p.LastUpdate
	if updated.IsZero() {
		updated = s.now()
	}
	return s.exec(ctx, op, q,
		p.ID,
		p.SignalID,
		p.Symbol,
		string(p.Side),
		p.OriginalSignal.StrategyID,
		string(p.ProfitLockMethod),
		models.ClampAmount(p.Size),
		models.ClampAmount(p.EntryPrice),
		models.ClampAmount(p.CurrentPrice),
		models.ClampAmount(p.UnrealizedPnL),
		models.ClampPercent(p.UnrealizedPnLPct),
		models.ClampAmount(p.TrailingStopPrice),
		models.ClampAmount(p.TakeProfitPrice),
		models.ClampEdgeDecay(p.EdgeDecayScore),
		models.ClampDrawdown(p.MaxDrawdownFromPeak),
		models.ClampAmount(p.PeakPnL),
		models.ClampAmount(p.ATRValue),
		status,
		reason,
		p.EntryTime.UTC(),
		updated.UTC(),
		s.version(),
	)
}

func (s *CHStore) UpdateStrategyPerformance(ctx context.Context, perf models.StrategyPerformance) error {
	history := make([]float64, len(perf.History))
	for i, v := range perf.History {
		history[i] = models.Float(models.ClampAmount(v))
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(strategy_id, name, wins, trials, total_pnl, alpha, beta, history, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("strategy_performance"))
	return s.exec(ctx, "update strategy performance", q,
		perf.StrategyID,
		perf.Name,
		uint32(max(perf.Wins, 0)),
		uint32(max(perf.Trials, 0)),
		models.ClampAmount(perf.TotalPnL),
		perf.Alpha,
		perf.Beta,
		history,
		s.now().UTC(),
		s.version(),
	)
}

func (s *CHStore) SaveMarketFeatures(ctx context.Context, symbol string, fs models.FeatureSet, r models.MarketRegime) error {
	ts := fs.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(symbol, ts, vvix, ofi, vpin, correlation, liquidity, volatility, momentum, mean_reversion, trend, regime, regime_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("market_features"))
	return s.exec(ctx, "save market features", q,
		symbol,
		ts.UTC(),
		models.ClampFeature(fs.VVIX),
		models.ClampFeature(fs.OFI),
		models.ClampFeature(fs.VPIN),
		models.ClampFeature(fs.Correlation),
		models.ClampFeature(fs.Liquidity),
		models.ClampFeature(fs.Volatility),
		models.ClampFeature(fs.Momentum),
		models.ClampFeature(fs.MeanReversion),
		models.ClampFeature(fs.Trend),
		string(r.Kind),
		models.ClampConfidence(r.Confidence),
	)
}

// Health pings the server.
func (s *CHStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.Gateway     = (*CHStore)(nil)
	_ domrepo.SignalStore = (*CHStore)(nil)
)
