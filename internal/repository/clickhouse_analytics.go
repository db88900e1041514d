package repository

import (
	"context"
	"fmt"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"

	"github.com/shopspring/decimal"
)

const defaultClosedLimit = 100

// ClosedPositions reads closed positions back, newest first. An empty symbol
// matches every symbol.
func (s *CHStore) ClosedPositions(ctx context.Context, symbol string, limit int) ([]domrepo.ClosedPositionRecord, error) {
	start := time.Now()
	if limit <= 0 {
		limit = defaultClosedLimit
	}
	q, args := closedPositionsQuery(s.table("positions"), symbol, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse closed_positions query error",
			applogger.String("symbol", symbol),
			applogger.Int("limit", limit),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("closed positions: %w", err)
	}
	defer rows.Close()

	out := make([]domrepo.ClosedPositionRecord, 0, limit)
	for rows.Next() {
		var (
			r                     domrepo.ClosedPositionRecord
			entry, exit, realized decimal.Decimal
		)
		if err := rows.Scan(&r.PositionID, &r.Symbol, &r.Side, &r.Method, &entry, &exit, &realized, &r.Reason, &r.EntryTime, &r.ClosedAt); err != nil {
			s.l.Error("clickhouse closed_positions scan error", applogger.Error(err))
			return nil, fmt.Errorf("scan closed position: %w", err)
		}
		r.EntryPrice, r.ExitPrice, r.RealizedPnL = models.Float(entry), models.Float(exit), models.Float(realized)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse closed_positions rows error", applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse closed_positions ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func closedPositionsQuery(table, symbol string, limit int) (string, []any) {
	where := "status = ?"
	args := []any{statusClosed}
	if symbol != "" {
		where += " AND symbol = ?"
		args = append(args, symbol)
	}
	args = append(args, limit)
	q := fmt.Sprintf(`
		SELECT id, symbol, side, method, entry_price, current_price, unrealized_pnl, exit_reason, entry_time, updated_at
		FROM %s FINAL
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT ?`, table, where)
	return q, args
}

// StrategyPerformance returns the latest persisted row per strategy.
func (s *CHStore) StrategyPerformance(ctx context.Context) ([]models.StrategyPerformance, error) {
	q := fmt.Sprintf(`
		SELECT strategy_id, name, wins, trials, total_pnl, alpha, beta, history
		FROM %s FINAL
		ORDER BY strategy_id`, s.table("strategy_performance"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse strategy_performance query error", applogger.Error(err))
		return nil, fmt.Errorf("strategy performance: %w", err)
	}
	defer rows.Close()

	var out []models.StrategyPerformance
	for rows.Next() {
		var (
			p            models.StrategyPerformance
			wins, trials uint32
			pnl          decimal.Decimal
		)
		if err := rows.Scan(&p.StrategyID, &p.Name, &wins, &trials, &pnl, &p.Alpha, &p.Beta, &p.History); err != nil {
			return nil, fmt.Errorf("scan strategy performance: %w", err)
		}
		p.Wins, p.Trials, p.TotalPnL = int(wins), int(trials), models.Float(pnl)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadArms rebuilds bandit arms from the performance table. It lets the
// engine restore state when Redis is not configured.
func (s *CHStore) LoadArms(ctx context.Context) (map[string]models.BanditArm, error) {
	perf, err := s.StrategyPerformance(ctx)
	if err != nil {
		return nil, err
	}
	arms := make(map[string]models.BanditArm, len(perf))
	for _, p := range perf {
		arms[p.StrategyID] = models.BanditArm{
			StrategyID: p.StrategyID,
			Wins:       p.Wins,
			Trials:     p.Trials,
			Alpha:      p.Alpha,
			Beta:       p.Beta,
		}
	}
	return arms, nil
}

// SaveArm is a no-op; arm state is written with strategy performance.
func (s *CHStore) SaveArm(context.Context, models.BanditArm) error { return nil }

var (
	_ domrepo.Analytics = (*CHStore)(nil)
	_ domrepo.ArmStore  = (*CHStore)(nil)
)
