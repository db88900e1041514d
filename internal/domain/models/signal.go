package models

import "time"

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// TradingSignal is emitted by the strategy orchestrator. ID is assigned by the
// signal store; an empty ID means the signal was never persisted.
type TradingSignal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	StrategyID string    `json:"strategyId"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	Reasoning  string    `json:"reasoning"`
}

// Persisted reports whether the signal has a backing store id.
func (s TradingSignal) Persisted() bool { return s.ID != "" }
