package positions

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"FinEdge/internal/domain/models"
	applogger "FinEdge/pkg/logger"
)

// Exit reasons. Several may fire on one tick; they are joined with ", ".
const (
	ReasonTrailingStop = "trailing_stop"
	ReasonTakeProfit   = "take_profit"
	ReasonTimeExit     = "time_exit"
	ReasonEdgeDecay    = "edge_decay"
	ReasonMaxDrawdown  = "max_drawdown"
)

// ratchet moves the trailing stop toward price. It never loosens.
func (e *Engine) ratchet(pos *models.Position, mc models.ProfitLockConfig, price float64) {
	dir := direction(pos.Side)

	var candidate float64
	if mc.UsesATR() {
		candidate = price - dir*pos.ATRValue*mc.ATRMultiplier
	} else {
		trail := mc.TrailingPercent
		if trail <= 0 {
			trail = e.cfg.TrailingStopPct
		}
		candidate = price * (1 - dir*trail)
	}
	if lock, ok := partialLock(pos, mc, price); ok && dir*(lock-candidate) > 0 {
		candidate = lock
	}

	if dir*(candidate-pos.TrailingStopPrice) > 0 {
		pos.TrailingStopPrice = candidate
	}
}

// partialLock advances the reached profit levels and returns the stop that
// locks in the level before the latest one (breakeven after the first).
func partialLock(pos *models.Position, mc models.ProfitLockConfig, price float64) (float64, bool) {
	levels := mc.PartialProfitLevels
	span := (pos.TakeProfitPrice - pos.EntryPrice) * direction(pos.Side)
	if len(levels) == 0 || span <= 0 {
		return 0, false
	}
	progress := (price - pos.EntryPrice) * direction(pos.Side) / span
	for pos.PartialLevelsHit < len(levels) && progress >= levels[pos.PartialLevelsHit] {
		pos.PartialLevelsHit++
	}
	if pos.PartialLevelsHit == 0 {
		return 0, false
	}
	locked := 0.0
	if pos.PartialLevelsHit >= 2 {
		locked = levels[pos.PartialLevelsHit-2]
	}
	return pos.EntryPrice + direction(pos.Side)*locked*span, true
}

// exitReasons evaluates every exit condition. Nothing fires while the
// position is younger than MinPositionAge.
func (e *Engine) exitReasons(pos *models.Position, mc models.ProfitLockConfig, now time.Time) []string {
	age := now.Sub(pos.EntryTime)
	if age < e.cfg.MinPositionAge {
		return nil
	}

	var reasons []string
	long := pos.Side == models.SideLong
	px := pos.CurrentPrice

	if (long && px <= pos.TrailingStopPrice) || (!long && px >= pos.TrailingStopPrice) {
		reasons = append(reasons, ReasonTrailingStop)
	}
	if pos.TakeProfitPrice > 0 &&
		((long && px >= pos.TakeProfitPrice) || (!long && px <= pos.TakeProfitPrice)) {
		reasons = append(reasons, ReasonTakeProfit)
	}
	if mc.TimeBasedExitMinutes > 0 && age >= time.Duration(mc.TimeBasedExitMinutes)*time.Minute {
		reasons = append(reasons, ReasonTimeExit)
	}
	if age >= e.cfg.EdgeDecayGrace && pos.EdgeDecayScore < mc.EdgeDecayThreshold {
		reasons = append(reasons, ReasonEdgeDecay)
	}
	if pos.UnrealizedPnL < 0 && mc.MaxDrawdownPercent > 0 && pos.MaxDrawdownFromPeak >= mc.MaxDrawdownPercent {
		reasons = append(reasons, ReasonMaxDrawdown)
	}
	return reasons
}

// ExitPosition closes the position with id. It returns false when the
// position is not live, so concurrent or repeated calls close it once.
func (e *Engine) ExitPosition(id, reason string) bool {
	now := e.now()

	e.mu.Lock()
	pos, ok := e.positions[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.positions, id)
	delete(e.lastPersist, id)

	final := *pos
	ev := models.ExitEvent{
		Position:    final,
		Reason:      reason,
		ExitPrice:   final.CurrentPrice,
		RealizedPnL: final.UnrealizedPnL,
		ExitTime:    now,
	}
	e.closed = append(e.closed, ev)
	if over := len(e.closed) - e.cfg.ClosedHistory; over > 0 {
		e.closed = append(e.closed[:0], e.closed[over:]...)
	}
	handlers := append([]ExitHandler(nil), e.handlers...)
	open := len(e.positions)
	e.mu.Unlock()

	e.sink.PositionClosed(final.Clamped(), reason)
	e.metrics.SetOpenPositions(open)
	e.metrics.RecordPositionExit(final.ProfitLockMethod, primaryReason(reason), final.UnrealizedPnL)
	e.log.Info("position closed",
		applogger.String("id", id),
		applogger.String("reason", reason),
		applogger.Float64("pnl", final.UnrealizedPnL),
		applogger.String("held", final.TimeHeld),
	)

	for i, h := range handlers {
		e.notify(i, h, ev)
	}
	return true
}

func (e *Engine) notify(i int, h ExitHandler, ev models.ExitEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordError("exit_handler_panic")
			e.log.Error("exit handler panicked",
				applogger.Int("handler", i),
				applogger.String("position", ev.Position.ID),
				applogger.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	if err := h(ev); err != nil {
		e.metrics.RecordError("exit_handler")
		e.log.Warn("exit handler failed",
			applogger.Int("handler", i),
			applogger.String("position", ev.Position.ID),
			applogger.Error(err),
		)
	}
}

func primaryReason(reason string) string {
	if i := strings.Index(reason, ","); i >= 0 {
		return reason[:i]
	}
	return reason
}

// Position returns a copy of the live position with id.
func (e *Engine) Position(id string) (models.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[id]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// OpenPositions returns copies of all live positions ordered by entry time.
func (e *Engine) OpenPositions() []models.Position {
	e.mu.Lock()
	out := make([]models.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

// ClosedPositions returns up to limit exit events, newest first.
func (e *Engine) ClosedPositions(symbol string, limit int) []models.ExitEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		limit = len(e.closed)
	}
	out := make([]models.ExitEvent, 0, min(limit, len(e.closed)))
	for i := len(e.closed) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || e.closed[i].Position.Symbol == symbol {
			out = append(out, e.closed[i])
		}
	}
	return out
}
