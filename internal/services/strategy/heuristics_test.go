package strategy

import (
	"testing"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestHeuristics(t *testing.T) {
	ranging := models.MarketRegime{Kind: models.RegimeRanging, Confidence: 0.7}
	stable := models.MarketRegime{Kind: models.RegimeStable, Confidence: 0.5}

	cases := []struct {
		name   string
		run    Heuristic
		fs     models.FeatureSet
		regime models.MarketRegime
		action models.Action
		conf   float64
	}{
		{"trend up", trendFollowing, models.FeatureSet{Trend: 0.02}, stable, models.ActionBuy, 0.3},
		{"trend capped", trendFollowing, models.FeatureSet{Trend: -0.5}, stable, models.ActionSell, 0.95},
		{"trend flat", trendFollowing, models.FeatureSet{Trend: 0.005}, stable, models.ActionHold, 0},
		{"momentum down", momentum, models.FeatureSet{Momentum: -0.01}, stable, models.ActionSell, 0.25},
		{"momentum quiet", momentum, models.FeatureSet{Momentum: 0.002}, stable, models.ActionHold, 0},
		{"mean reversion fades trend", meanReversion, models.FeatureSet{MeanReversion: 0.5, Volatility: 0.4, Trend: 0.01}, stable, models.ActionSell, 0.6},
		{"mean reversion needs volatility", meanReversion, models.FeatureSet{MeanReversion: 0.9, Volatility: 0.3}, stable, models.ActionHold, 0},
		{"breakout", breakout, models.FeatureSet{Volatility: 0.65, Liquidity: 0.55, Momentum: 0.04}, stable, models.ActionBuy, 0.64},
		{"breakout weak momentum", breakout, models.FeatureSet{Volatility: 0.65, Liquidity: 0.55, Momentum: 0.03}, stable, models.ActionHold, 0},
		{"scalping", scalping, models.FeatureSet{Liquidity: 0.8, Volatility: 0.1, OFI: -0.5}, stable, models.ActionSell, 0.4},
		{"scalping thin book", scalping, models.FeatureSet{Liquidity: 0.7, OFI: 0.9}, stable, models.ActionHold, 0},
		{"swing in range", swingTrading, models.FeatureSet{Volatility: 0.3, MeanReversion: 0.5, Trend: -0.01}, ranging, models.ActionBuy, 0.54},
		{"swing outside range", swingTrading, models.FeatureSet{Volatility: 0.3, MeanReversion: 0.5}, stable, models.ActionHold, 0},
		{"stat arb", statisticalArbitrage, models.FeatureSet{Correlation: -0.8, MeanReversion: 0.6, Momentum: 0.01}, stable, models.ActionSell, 0.48},
		{"stat arb uncorrelated", statisticalArbitrage, models.FeatureSet{Correlation: 0.7, MeanReversion: 0.9}, stable, models.ActionHold, 0},
		{"combined", contextualBandits, models.FeatureSet{Trend: 1, OFI: 0.5}, stable, models.ActionBuy, 0.4},
		{"combined weak", contextualBandits, models.FeatureSet{Trend: 1}, stable, models.ActionHold, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.run(tc.fs, tc.regime)
			assert.Equal(t, tc.action, c.Action)
			assert.InDelta(t, tc.conf, c.Confidence, 1e-9)
		})
	}
}

func TestCombinedWeights(t *testing.T) {
	fs := models.FeatureSet{Trend: 1, Momentum: 1, OFI: 1, Volatility: 1, MeanReversion: 1}
	assert.InDelta(t, 0.8, Combined(fs), 1e-12)
}

func TestContextMultiplier(t *testing.T) {
	tbl := DefaultContextTable()
	assert.Equal(t, 1.5, tbl.Multiplier(TrendFollowing, models.RegimeTrending))
	assert.Equal(t, 0.8, tbl.Multiplier(TrendFollowing, models.RegimeStable))
	assert.Equal(t, 1.2, tbl.Multiplier(Momentum, models.RegimeVolatile))
	assert.Equal(t, 0.7, tbl.Multiplier(MeanReversion, models.RegimeTrending))
	assert.Equal(t, 1.2, tbl.Multiplier(StatisticalArbitrage, models.RegimeStable))
	assert.Equal(t, 1.0, tbl.Multiplier(ContextualBandits, models.RegimeVolatile))
	assert.Equal(t, 1.0, tbl.Multiplier("unknown", models.RegimeVolatile))
}

func TestDefaultStrategiesMatchContextTable(t *testing.T) {
	tbl := DefaultContextTable()
	for _, s := range DefaultStrategies() {
		_, ok := tbl[s.ID]
		assert.True(t, ok, s.ID)
	}
	assert.Len(t, DefaultStrategies(), 8)
}
