package repository

import (
	"context"
	"time"

	"FinEdge/internal/domain/models"
)

// MarketStream delivers normalized ticker and order-book events.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Gateway is the synchronous persistence surface for signals, positions and
// strategy performance. Callers clamp numeric fields before handing them over.
type Gateway interface {
	SaveSignal(ctx context.Context, s models.TradingSignal, fs models.FeatureSet, r models.MarketRegime) (string, error)
	SavePosition(ctx context.Context, p models.Position, signalID string) error
	UpdatePosition(ctx context.Context, p models.Position) error
	ClosePosition(ctx context.Context, p models.Position, reason string) error
	UpdateStrategyPerformance(ctx context.Context, perf models.StrategyPerformance) error
	SaveMarketFeatures(ctx context.Context, symbol string, fs models.FeatureSet, r models.MarketRegime) error
}

// SignalStore persists accepted signals. It is the only write on the signal
// path that is awaited, because a position must not open without a signal id.
type SignalStore interface {
	SaveSignal(ctx context.Context, s models.TradingSignal, fs models.FeatureSet, r models.MarketRegime) (string, error)
}

// The sinks below are best-effort: they never block the caller and never
// report failures back. Implementations log and drop.

type FeatureSink interface {
	RecordFeatures(symbol string, fs models.FeatureSet, r models.MarketRegime)
}

type PositionSink interface {
	PositionOpened(p models.Position, signalID string)
	PositionUpdated(p models.Position)
	PositionClosed(p models.Position, reason string)
}

type PerformanceSink interface {
	PerformanceUpdated(perf models.StrategyPerformance)
}

// ArmStore keeps bandit arm snapshots across restarts.
type ArmStore interface {
	LoadArms(ctx context.Context) (map[string]models.BanditArm, error)
	SaveArm(ctx context.Context, arm models.BanditArm) error
}

// EventPublisher fans engine events out to downstream consumers.
type EventPublisher interface {
	PublishSignal(ctx context.Context, s models.TradingSignal) error
	PublishExit(ctx context.Context, ev models.ExitEvent) error
	Close() error
}

// ClosedPositionRecord is a closed position as read back from storage.
type ClosedPositionRecord struct {
	PositionID  string    `json:"positionId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Method      string    `json:"method"`
	EntryPrice  float64   `json:"entryPrice"`
	ExitPrice   float64   `json:"exitPrice"`
	RealizedPnL float64   `json:"realizedPnl"`
	Reason      string    `json:"reason"`
	EntryTime   time.Time `json:"entryTime"`
	ClosedAt    time.Time `json:"closedAt"`
}

// Analytics reads persisted history back for reporting.
type Analytics interface {
	ClosedPositions(ctx context.Context, symbol string, limit int) ([]ClosedPositionRecord, error)
	StrategyPerformance(ctx context.Context) ([]models.StrategyPerformance, error)
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
	RecordSignal(strategyID string, action models.Action)
	RecordPositionExit(method models.ProfitLockMethod, reason string, pnl float64)
	SetOpenPositions(n int)
	RecordDropped(queue string)
}
