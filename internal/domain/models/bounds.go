package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// Storage column limits. Values crossing the persistence boundary are clamped
// to these and rounded to the column scale.
var (
	MaxAmount  = decimal.RequireFromString("999999999999.99999999") // Decimal(20,8)
	MaxPercent = decimal.RequireFromString("999999.9999")           // Decimal(10,4)
	MaxFeature = decimal.RequireFromString("999999.999999")         // Decimal(12,6)
)

const (
	AmountScale    = 8
	PercentScale   = 4
	FeatureScale   = 6
	MaxDrawdownCap = 5.0
	MinEdgeDecay   = 0.0001
)

func clampDecimal(v float64, limit decimal.Decimal, scale int32) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	d := decimal.NewFromFloat(v)
	if d.GreaterThan(limit) {
		d = limit
	} else if d.LessThan(limit.Neg()) {
		d = limit.Neg()
	}
	return d.Round(scale)
}

func clampRange(v, lo, hi float64, scale int32) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = lo
	}
	v = math.Max(lo, math.Min(hi, v))
	return decimal.NewFromFloat(v).Round(scale)
}

// ClampAmount bounds prices, sizes, PnL and ATR.
func ClampAmount(v float64) decimal.Decimal { return clampDecimal(v, MaxAmount, AmountScale) }

// ClampPercent bounds percentage columns.
func ClampPercent(v float64) decimal.Decimal { return clampDecimal(v, MaxPercent, PercentScale) }

// ClampFeature bounds feature columns.
func ClampFeature(v float64) decimal.Decimal { return clampDecimal(v, MaxFeature, FeatureScale) }

func ClampConfidence(v float64) decimal.Decimal { return clampRange(v, 0, 1, PercentScale) }

func ClampEdgeDecay(v float64) decimal.Decimal { return clampRange(v, MinEdgeDecay, 1, PercentScale) }

func ClampDrawdown(v float64) decimal.Decimal { return clampRange(v, 0, MaxDrawdownCap, PercentScale) }

// Float returns the float64 value of an already clamped decimal.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Clamped returns a copy of p with every numeric field bounded for storage.
func (p Position) Clamped() Position {
	c := p
	c.Size = Float(ClampAmount(p.Size))
	c.EntryPrice = Float(ClampAmount(p.EntryPrice))
	c.CurrentPrice = Float(ClampAmount(p.CurrentPrice))
	c.UnrealizedPnL = Float(ClampAmount(p.UnrealizedPnL))
	c.UnrealizedPnLPct = Float(ClampPercent(p.UnrealizedPnLPct))
	c.TrailingStopPrice = Float(ClampAmount(p.TrailingStopPrice))
	c.TakeProfitPrice = Float(ClampAmount(p.TakeProfitPrice))
	c.EdgeDecayScore = Float(ClampEdgeDecay(p.EdgeDecayScore))
	c.MaxDrawdownFromPeak = Float(ClampDrawdown(p.MaxDrawdownFromPeak))
	c.PeakPnL = Float(ClampAmount(p.PeakPnL))
	c.ATRValue = Float(ClampAmount(p.ATRValue))
	c.OriginalSignal = p.OriginalSignal.Clamped()
	return c
}

// Clamped returns a copy of s with price and confidence bounded for storage.
func (s TradingSignal) Clamped() TradingSignal {
	c := s
	c.Price = Float(ClampAmount(s.Price))
	c.Confidence = Float(ClampConfidence(s.Confidence))
	return c
}

// Clamped returns a copy of f with every feature bounded for storage.
func (f FeatureSet) Clamped() FeatureSet {
	c := f
	for _, v := range []*float64{&c.VVIX, &c.OFI, &c.VPIN, &c.Correlation, &c.Liquidity,
		&c.Volatility, &c.Momentum, &c.MeanReversion, &c.Trend} {
		*v = Float(ClampFeature(*v))
	}
	return c
}

// Clamped returns a copy of p with PnL and history bounded for storage.
func (p StrategyPerformance) Clamped() StrategyPerformance {
	c := p
	c.TotalPnL = Float(ClampAmount(p.TotalPnL))
	c.History = make([]float64, len(p.History))
	for i, v := range p.History {
		c.History[i] = Float(ClampAmount(v))
	}
	return c
}
