package features

import (
	"sync"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	symbols []string
	regimes []models.MarketRegime
}

func (s *recordingSink) RecordFeatures(symbol string, _ models.FeatureSet, r models.MarketRegime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append(s.symbols, symbol)
	s.regimes = append(s.regimes, r)
}

func feed(e *Engine, symbol string, prices ...float64) {
	for _, p := range prices {
		e.UpdateTicker(models.Ticker{Symbol: symbol, Price: p, Volume: 1})
	}
}

func TestExtractFeaturesNeedsTenPrices(t *testing.T) {
	e := NewEngine()
	for i := 0; i < MinPrices; i++ {
		_, ok := e.ExtractFeatures("ETHUSDT")
		assert.False(t, ok, "after %d prices", i)
		feed(e, "ETHUSDT", 100+float64(i))
	}
	_, ok := e.ExtractFeatures("ETHUSDT")
	assert.True(t, ok)
}

func TestFlatTicksGiveZeroVolatilityAndTrend(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return at }))
	feed(e, "BTCUSDT", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)

	fs, ok := e.ExtractFeatures("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.0, fs.Volatility)
	assert.Equal(t, 0.0, fs.Trend)
	assert.Equal(t, 0.0, fs.Correlation)
	assert.Equal(t, at, fs.Timestamp)
}

func TestHistoryIsBounded(t *testing.T) {
	e := NewEngine(WithMaxHistory(20))
	for i := 0; i < 50; i++ {
		feed(e, "SOLUSDT", float64(i+1))
	}
	e.mu.Lock()
	h := e.symbols["SOLUSDT"]
	assert.Equal(t, 20, h.prices.Len())
	assert.Equal(t, 31.0, h.prices.Values()[0])
	assert.Equal(t, 50.0, h.prices.Values()[19])
	e.mu.Unlock()
}

func TestCorrelationAgainstBaseSymbol(t *testing.T) {
	e := NewEngine()
	base := []float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 95, 106, 94, 107, 93, 108, 92, 109, 91, 110, 90, 111}
	for _, p := range base {
		feed(e, "BTCUSDT", p)
		feed(e, "ETHUSDT", p*2)
	}
	fs, ok := e.ExtractFeatures("ETHUSDT")
	require.True(t, ok)
	assert.InDelta(t, 1, fs.Correlation, 1e-9)

	own, ok := e.ExtractFeatures("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.0, own.Correlation)
}

func TestOrderBookFeatures(t *testing.T) {
	e := NewEngine()
	feed(e, "ETHUSDT", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)

	fs, _ := e.ExtractFeatures("ETHUSDT")
	assert.Equal(t, 0.0, fs.OFI)
	assert.Equal(t, 0.0, fs.Liquidity)

	e.Update(models.NewOrderBookEvent(models.OrderBook{
		Symbol: "ETHUSDT",
		Bids:   []models.Level{{Price: 99, Size: 100}},
		Asks:   []models.Level{{Price: 101, Size: 100}},
	}))
	e.Update(models.NewOrderBookEvent(models.OrderBook{
		Symbol: "ETHUSDT",
		Bids:   []models.Level{{Price: 99, Size: 300}},
		Asks:   []models.Level{{Price: 101, Size: 100}},
	}))

	fs, _ = e.ExtractFeatures("ETHUSDT")
	assert.InDelta(t, 1, fs.OFI, 1e-6)
	assert.Greater(t, fs.Liquidity, 0.0)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		fs   models.FeatureSet
		kind models.RegimeKind
		conf float64
	}{
		{"volatile wins over trend", models.FeatureSet{Volatility: 0.8, Trend: 0.9}, models.RegimeVolatile, 0.8},
		{"negative trend", models.FeatureSet{Trend: -0.7}, models.RegimeTrending, 0.7},
		{"ranging", models.FeatureSet{MeanReversion: 0.65}, models.RegimeRanging, 0.65},
		{"stable default", models.FeatureSet{Volatility: 0.7, Trend: 0.6, MeanReversion: 0.6}, models.RegimeStable, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Classify(tc.fs)
			assert.Equal(t, tc.kind, r.Kind)
			assert.InDelta(t, tc.conf, r.Confidence, 1e-12)
			assert.Equal(t, tc.fs, r.Features)
		})
	}
}

func TestDetectRegimeForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(WithFeatureSink(sink))

	_, ok := e.DetectRegime("BTCUSDT")
	assert.False(t, ok)

	feed(e, "BTCUSDT", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	r, ok := e.DetectRegime("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, models.RegimeStable, r.Kind)
	assert.Equal(t, 0.5, r.Confidence)

	assert.Equal(t, []string{"BTCUSDT"}, sink.symbols)
	latest, ok := e.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, r, latest)
}

func TestSupportedSymbolsAndCleanup(t *testing.T) {
	e := NewEngine()
	feed(e, "ETHUSDT", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	feed(e, "BTCUSDT", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	feed(e, "DOGEUSDT", 1, 2, 3)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, e.SupportedSymbols())

	assert.Equal(t, 2, e.CleanupOldSymbols([]string{"BTCUSDT"}))
	assert.Equal(t, 0, e.CleanupOldSymbols([]string{"BTCUSDT"}))
	assert.Equal(t, []string{"BTCUSDT"}, e.SupportedSymbols())

	_, ok := e.ExtractFeatures("ETHUSDT")
	assert.False(t, ok)
}

func TestConcurrentUpdatesAndReads(t *testing.T) {
	e := NewEngine(WithMaxHistory(50))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				feed(e, "BTCUSDT", 100+float64(i%7))
				e.DetectRegime("BTCUSDT")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"BTCUSDT"}, e.SupportedSymbols())
}
