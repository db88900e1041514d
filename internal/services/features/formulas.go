package features

import (
	"math"

	"FinEdge/internal/domain/models"
)

const (
	ofiEpsilon      = 1e-8
	vvixMinPrices   = 20
	vvixWindow      = 10
	vpinMinSamples  = 20
	corrMinReturns  = 20
	corrMaxSamples  = 20
	liquidityLevels = 10
	liquidityDepth  = 1000.0
	trendMinPrices  = 10
	trendMaxPrices  = 20
)

// Returns computes simple returns (p[i]-p[i-1])/p[i-1], skipping pairs whose
// previous price is not positive.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func Volatility(prices []float64) float64 {
	return StdDev(Returns(prices))
}

// VVIX is the dispersion of rolling 10-return volatilities.
func VVIX(prices []float64) float64 {
	if len(prices) < vvixMinPrices {
		return 0
	}
	r := Returns(prices)
	if len(r) < vvixWindow {
		return 0
	}
	stds := make([]float64, 0, len(r)-vvixWindow+1)
	for i := 0; i+vvixWindow <= len(r); i++ {
		stds = append(stds, StdDev(r[i:i+vvixWindow]))
	}
	return StdDev(stds)
}

func bookSize(levels []models.Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	sum := 0.0
	for _, l := range levels[:n] {
		sum += l.Size
	}
	return sum
}

// OFI compares resting size of the latest snapshot against the previous one.
func OFI(prev, latest models.OrderBook) float64 {
	bidFlow := bookSize(latest.Bids, len(latest.Bids)) - bookSize(prev.Bids, len(prev.Bids))
	askFlow := bookSize(latest.Asks, len(latest.Asks)) - bookSize(prev.Asks, len(prev.Asks))
	return finite((bidFlow - askFlow) / (bidFlow + askFlow + ofiEpsilon))
}

// VPIN classifies each tick's volume by the direction of the price move.
func VPIN(prices, volumes []float64) float64 {
	if len(prices) < vpinMinSamples || len(volumes) < vpinMinSamples {
		return 0
	}
	n := min(len(prices), len(volumes))
	p := prices[len(prices)-n:]
	v := volumes[len(volumes)-n:]

	var buy, sell float64
	for i := 1; i < n; i++ {
		if p[i] > p[i-1] {
			buy += v[i]
		} else {
			sell += v[i]
		}
	}
	total := buy + sell
	if total == 0 {
		return 0
	}
	return math.Abs(buy-sell) / total
}

// Correlation is the Pearson correlation of the most recent returns of a and b.
func Correlation(a, b []float64) float64 {
	ra, rb := Returns(a), Returns(b)
	if len(ra) < corrMinReturns || len(rb) < corrMinReturns {
		return 0
	}
	n := min(len(ra), len(rb), corrMaxSamples)
	x := ra[len(ra)-n:]
	y := rb[len(rb)-n:]

	mx, my := mean(x), mean(y)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	den := math.Sqrt(vx * vy)
	if den == 0 {
		return 0
	}
	return finite(cov / den)
}

// Liquidity averages a spread score and a top-of-book depth score.
func Liquidity(book models.OrderBook) float64 {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0
	}
	bid, ask := book.BestBid().Price, book.BestAsk().Price
	mid := (bid + ask) / 2

	spreadScore := 0.0
	if mid > 0 {
		spreadScore = 1 / (1 + (ask-bid)/mid)
	}
	depth := bookSize(book.Bids, liquidityLevels) + bookSize(book.Asks, liquidityLevels)
	depthScore := math.Min(depth/liquidityDepth, 1)

	return finite((spreadScore + depthScore) / 2)
}

// Momentum compares the mean of the last two prices with the two before them.
func Momentum(prices []float64) float64 {
	n := len(prices)
	if n < 4 {
		return 0
	}
	recent := (prices[n-1] + prices[n-2]) / 2
	older := (prices[n-3] + prices[n-4]) / 2
	if older == 0 {
		return 0
	}
	return finite((recent - older) / older)
}

// MeanReversion is the distance of the last price from the window mean, capped at 1.
func MeanReversion(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	m := mean(prices)
	if m == 0 {
		return 0
	}
	cur := prices[len(prices)-1]
	return finite(math.Min(math.Abs(cur-m)/m*2, 1))
}

// Trend is the OLS slope over the last 20 prices normalized by their mean.
func Trend(prices []float64) float64 {
	if len(prices) < trendMinPrices {
		return 0
	}
	w := prices[max(0, len(prices)-trendMaxPrices):]
	n := float64(len(w))

	var sx, sy, sxy, sxx float64
	for i, p := range w {
		x := float64(i)
		sx += x
		sy += p
		sxy += x * p
		sxx += x * x
	}
	den := n*sxx - sx*sx
	avg := sy / n
	if den == 0 || avg == 0 {
		return 0
	}
	slope := (n*sxy - sx*sy) / den
	return finite(slope / avg)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
