package models

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideFor maps a signal action to the position side it opens.
func SideFor(a Action) (Side, bool) {
	switch a {
	case ActionBuy:
		return SideLong, true
	case ActionSell:
		return SideShort, true
	}
	return "", false
}

type ProfitLockMethod string

const (
	MethodATRTrailing        ProfitLockMethod = "atr_trailing_stop"
	MethodPercentageTrailing ProfitLockMethod = "percentage_trailing_stop"
	MethodPartialProfit      ProfitLockMethod = "partial_profit_taking"
	MethodTimeBased          ProfitLockMethod = "time_based_exit"
	MethodEdgeDecay          ProfitLockMethod = "edge_decay_exit"
	MethodVolatilityAdaptive ProfitLockMethod = "volatility_adaptive_trailing_stop"
)

// ProfitLockConfig is the static tuning of one profit-lock method.
type ProfitLockConfig struct {
	Method               ProfitLockMethod `json:"method"`
	ATRMultiplier        float64          `json:"atrMultiplier"`
	TrailingPercent      float64          `json:"trailingPercent"`
	PartialProfitLevels  []float64        `json:"partialProfitLevels,omitempty"`
	TimeBasedExitMinutes int              `json:"timeBasedExitMinutes"`
	EdgeDecayThreshold   float64          `json:"edgeDecayThreshold"`
	MaxDrawdownPercent   float64          `json:"maxDrawdownPercent"`
}

// UsesATR reports whether the trailing stop distance is ATR based.
func (c ProfitLockConfig) UsesATR() bool {
	return c.Method == MethodATRTrailing || c.Method == MethodVolatilityAdaptive
}

// Position is a live paper-trading position.
type Position struct {
	ID                  string           `json:"id"`
	SignalID            string           `json:"signalId"`
	Symbol              string           `json:"symbol"`
	Side                Side             `json:"side"`
	Size                float64          `json:"size"`
	EntryPrice          float64          `json:"entryPrice"`
	CurrentPrice        float64          `json:"currentPrice"`
	UnrealizedPnL       float64          `json:"unrealizedPnl"`
	UnrealizedPnLPct    float64          `json:"unrealizedPnlPct"`
	TrailingStopPrice   float64          `json:"trailingStopPrice"`
	TakeProfitPrice     float64          `json:"takeProfitPrice"`
	ProfitLockMethod    ProfitLockMethod `json:"profitLockMethod"`
	TimeHeld            string           `json:"timeHeld"`
	EntryTime           time.Time        `json:"entryTime"`
	LastUpdate          time.Time        `json:"lastUpdate"`
	EdgeDecayScore      float64          `json:"edgeDecayScore"`
	MaxDrawdownFromPeak float64          `json:"maxDrawdownFromPeak"`
	PeakPnL             float64          `json:"peakPnl"`
	ATRValue            float64          `json:"atrValue"`
	PartialLevelsHit    int              `json:"partialLevelsHit"`
	OriginalSignal      TradingSignal    `json:"originalSignal"`
}

// ExitEvent is delivered to exit observers once per closed position.
type ExitEvent struct {
	Position    Position  `json:"position"`
	Reason      string    `json:"reason"`
	ExitPrice   float64   `json:"exitPrice"`
	RealizedPnL float64   `json:"realizedPnl"`
	ExitTime    time.Time `json:"exitTime"`
}
