package models

import "time"

// FeatureSet is a per-symbol snapshot of the rolling statistics.
type FeatureSet struct {
	VVIX          float64   `json:"vvix"`
	OFI           float64   `json:"ofi"`
	VPIN          float64   `json:"vpin"`
	Correlation   float64   `json:"correlation"`
	Liquidity     float64   `json:"liquidity"`
	Volatility    float64   `json:"volatility"`
	Momentum      float64   `json:"momentum"`
	MeanReversion float64   `json:"meanReversion"`
	Trend         float64   `json:"trend"`
	Timestamp     time.Time `json:"timestamp"`
}

type RegimeKind string

const (
	RegimeTrending RegimeKind = "trending"
	RegimeRanging  RegimeKind = "ranging"
	RegimeVolatile RegimeKind = "volatile"
	RegimeStable   RegimeKind = "stable"
)

// MarketRegime is the coarse label derived from a FeatureSet.
type MarketRegime struct {
	Kind       RegimeKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	Features   FeatureSet `json:"features"`
}
