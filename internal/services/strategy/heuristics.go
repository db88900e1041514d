package strategy

import (
	"fmt"
	"math"

	"FinEdge/internal/domain/models"
)

// Candidate is the raw output of a heuristic before the confidence filter.
type Candidate struct {
	Action     models.Action
	Confidence float64
	Reasoning  string
}

// Heuristic turns the current features and regime into a candidate. A
// heuristic that does not fire returns a hold with zero confidence.
type Heuristic func(fs models.FeatureSet, regime models.MarketRegime) Candidate

type Strategy struct {
	ID   string
	Name string
	Run  Heuristic
}

// contextual_bandits weights for trend, momentum, ofi, volatility, meanReversion.
var combinedWeights = [5]float64{0.3, 0.2, 0.2, -0.1, 0.2}

func DefaultStrategies() []Strategy {
	return []Strategy{
		{ID: TrendFollowing, Name: "Trend Following", Run: trendFollowing},
		{ID: Momentum, Name: "Momentum", Run: momentum},
		{ID: MeanReversion, Name: "Mean Reversion", Run: meanReversion},
		{ID: Breakout, Name: "Breakout", Run: breakout},
		{ID: Scalping, Name: "Scalping", Run: scalping},
		{ID: SwingTrading, Name: "Swing Trading", Run: swingTrading},
		{ID: StatisticalArbitrage, Name: "Statistical Arbitrage", Run: statisticalArbitrage},
		{ID: ContextualBandits, Name: "Contextual Bandits", Run: contextualBandits},
	}
}

func hold() Candidate {
	return Candidate{Action: models.ActionHold}
}

// with returns buy for positive v, sell otherwise.
func with(v float64) models.Action {
	if v > 0 {
		return models.ActionBuy
	}
	return models.ActionSell
}

// against returns the contrarian action to the sign of v.
func against(v float64) models.Action {
	if v > 0 {
		return models.ActionSell
	}
	return models.ActionBuy
}

func trendFollowing(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if math.Abs(fs.Trend) <= 0.005 {
		return hold()
	}
	return Candidate{
		Action:     with(fs.Trend),
		Confidence: math.Min(math.Abs(fs.Trend)*15, 0.95),
		Reasoning:  fmt.Sprintf("trend %.4f", fs.Trend),
	}
}

func momentum(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if math.Abs(fs.Momentum) <= 0.002 {
		return hold()
	}
	return Candidate{
		Action:     with(fs.Momentum),
		Confidence: math.Min(math.Abs(fs.Momentum)*25, 0.9),
		Reasoning:  fmt.Sprintf("momentum %.4f", fs.Momentum),
	}
}

func meanReversion(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if fs.MeanReversion <= 0.4 || fs.Volatility <= 0.3 {
		return hold()
	}
	return Candidate{
		Action:     against(fs.Trend),
		Confidence: math.Min(fs.MeanReversion*1.2, 0.85),
		Reasoning:  fmt.Sprintf("stretched %.2f from mean against trend %.4f", fs.MeanReversion, fs.Trend),
	}
}

func breakout(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if fs.Volatility <= 0.6 || fs.Liquidity <= 0.5 || math.Abs(fs.Momentum) <= 0.03 {
		return hold()
	}
	return Candidate{
		Action:     with(fs.Momentum),
		Confidence: math.Min((fs.Volatility+fs.Liquidity)/2+math.Abs(fs.Momentum), 0.9),
		Reasoning:  fmt.Sprintf("breakout vol %.2f liq %.2f momentum %.4f", fs.Volatility, fs.Liquidity, fs.Momentum),
	}
}

func scalping(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if fs.Liquidity <= 0.7 || fs.Volatility >= 0.4 || math.Abs(fs.OFI) <= 0.3 {
		return hold()
	}
	return Candidate{
		Action:     with(fs.OFI),
		Confidence: math.Min(math.Abs(fs.OFI)*fs.Liquidity, 0.85),
		Reasoning:  fmt.Sprintf("order flow %.2f in liquid book", fs.OFI),
	}
}

func swingTrading(fs models.FeatureSet, regime models.MarketRegime) Candidate {
	if regime.Kind != models.RegimeRanging || fs.Volatility <= 0.2 || fs.Volatility >= 0.6 ||
		math.Abs(fs.MeanReversion) <= 0.3 {
		return hold()
	}
	return Candidate{
		Action:     against(fs.Trend),
		Confidence: math.Min(math.Abs(fs.MeanReversion)*0.8+regime.Confidence*0.2, 0.8),
		Reasoning:  fmt.Sprintf("ranging swing, mean reversion %.2f", fs.MeanReversion),
	}
}

func statisticalArbitrage(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	if math.Abs(fs.Correlation) <= 0.7 || fs.MeanReversion <= 0.5 {
		return hold()
	}
	return Candidate{
		Action:     against(fs.Momentum),
		Confidence: math.Min(math.Abs(fs.Correlation)*fs.MeanReversion, 0.85),
		Reasoning:  fmt.Sprintf("correlation %.2f with divergence %.2f", fs.Correlation, fs.MeanReversion),
	}
}

// Combined is the weighted linear score used by the contextual bandit heuristic.
func Combined(fs models.FeatureSet) float64 {
	w := combinedWeights
	return w[0]*fs.Trend + w[1]*fs.Momentum + w[2]*fs.OFI + w[3]*fs.Volatility + w[4]*fs.MeanReversion
}

func contextualBandits(fs models.FeatureSet, _ models.MarketRegime) Candidate {
	score := Combined(fs)
	if math.Abs(score) <= 0.3 {
		return hold()
	}
	return Candidate{
		Action:     with(score),
		Confidence: math.Min(math.Abs(score), 0.9),
		Reasoning:  fmt.Sprintf("combined score %.3f", score),
	}
}
