package positions

import (
	"FinEdge/internal/domain/models"
	"FinEdge/internal/services/strategy"
)

// FallbackMethod is used for strategies missing from the strategy map.
const FallbackMethod = models.MethodVolatilityAdaptive

// MethodTable holds the tuning of every profit-lock method.
type MethodTable map[models.ProfitLockMethod]models.ProfitLockConfig

// StrategyMethods maps strategy ids to the method their positions use.
type StrategyMethods map[string]models.ProfitLockMethod

func DefaultMethods() MethodTable {
	return MethodTable{
		models.MethodATRTrailing: {
			Method:             models.MethodATRTrailing,
			ATRMultiplier:      2.0,
			TrailingPercent:    0.02,
			EdgeDecayThreshold: 0.3,
			MaxDrawdownPercent: 0.15,
		},
		models.MethodPercentageTrailing: {
			Method:             models.MethodPercentageTrailing,
			ATRMultiplier:      1.5,
			TrailingPercent:    0.015,
			EdgeDecayThreshold: 0.3,
			MaxDrawdownPercent: 0.10,
		},
		models.MethodPartialProfit: {
			Method:              models.MethodPartialProfit,
			ATRMultiplier:       2.5,
			TrailingPercent:     0.025,
			PartialProfitLevels: []float64{0.25, 0.5, 0.75},
			EdgeDecayThreshold:  0.25,
			MaxDrawdownPercent:  0.20,
		},
		models.MethodTimeBased: {
			Method:               models.MethodTimeBased,
			ATRMultiplier:        1.5,
			TrailingPercent:      0.02,
			TimeBasedExitMinutes: 60,
			EdgeDecayThreshold:   0.3,
			MaxDrawdownPercent:   0.15,
		},
		models.MethodEdgeDecay: {
			Method:             models.MethodEdgeDecay,
			ATRMultiplier:      2.0,
			TrailingPercent:    0.02,
			EdgeDecayThreshold: 0.5,
			MaxDrawdownPercent: 0.15,
		},
		models.MethodVolatilityAdaptive: {
			Method:             models.MethodVolatilityAdaptive,
			ATRMultiplier:      2.5,
			TrailingPercent:    0.02,
			EdgeDecayThreshold: 0.3,
			MaxDrawdownPercent: 0.20,
		},
	}
}

func DefaultStrategyMethods() StrategyMethods {
	return StrategyMethods{
		strategy.TrendFollowing:       models.MethodATRTrailing,
		strategy.Momentum:             models.MethodPercentageTrailing,
		strategy.MeanReversion:        models.MethodTimeBased,
		strategy.Scalping:             models.MethodTimeBased,
		strategy.Breakout:             models.MethodVolatilityAdaptive,
		strategy.ContextualBandits:    models.MethodVolatilityAdaptive,
		strategy.SwingTrading:         models.MethodPartialProfit,
		strategy.StatisticalArbitrage: models.MethodEdgeDecay,
	}
}

// resolve picks the method config for a strategy, falling back when either
// the strategy or its method is unknown.
func (e *Engine) resolve(strategyID string) models.ProfitLockConfig {
	m, ok := e.strategyMethods[strategyID]
	if !ok {
		m = FallbackMethod
	}
	if c, ok := e.methods[m]; ok {
		return c
	}
	if c, ok := e.methods[FallbackMethod]; ok {
		return c
	}
	return DefaultMethods()[FallbackMethod]
}
