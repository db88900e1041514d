package strategy

import "FinEdge/internal/domain/models"

// Strategy ids, in the fixed order arms are sampled.
const (
	TrendFollowing       = "trend_following"
	Momentum             = "momentum"
	MeanReversion        = "mean_reversion"
	Breakout             = "breakout"
	Scalping             = "scalping"
	SwingTrading         = "swing_trading"
	StatisticalArbitrage = "statistical_arbitrage"
	ContextualBandits    = "contextual_bandits"
)

// ContextRule scales an arm's sample by the current regime.
type ContextRule struct {
	ByRegime map[models.RegimeKind]float64
	Default  float64
}

// ContextTable maps strategy ids to their regime multipliers. Strategies
// without a rule get a neutral multiplier of one.
type ContextTable map[string]ContextRule

func (t ContextTable) Multiplier(strategyID string, regime models.RegimeKind) float64 {
	rule, ok := t[strategyID]
	if !ok {
		return 1
	}
	if m, ok := rule.ByRegime[regime]; ok {
		return m
	}
	return rule.Default
}

func DefaultContextTable() ContextTable {
	return ContextTable{
		TrendFollowing: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeTrending: 1.5},
			Default:  0.8,
		},
		Momentum: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeTrending: 1.3, models.RegimeVolatile: 1.2},
			Default:  0.9,
		},
		MeanReversion: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeRanging: 1.5},
			Default:  0.7,
		},
		Breakout: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeVolatile: 1.4},
			Default:  0.8,
		},
		Scalping: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeStable: 1.3, models.RegimeRanging: 1.1},
			Default:  0.8,
		},
		SwingTrading: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeRanging: 1.3},
			Default:  0.9,
		},
		StatisticalArbitrage: {
			ByRegime: map[models.RegimeKind]float64{models.RegimeStable: 1.2, models.RegimeRanging: 1.2},
			Default:  0.9,
		},
		ContextualBandits: {Default: 1.0},
	}
}
